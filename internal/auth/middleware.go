package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// callerContextKey is the context key for storing caller info
const callerContextKey contextKey = "caller"

// Caller holds the authenticated user extracted from a bearer token
type Caller struct {
	UserID   uuid.UUID
	Username string
}

// Middleware validates Bearer access tokens and stores the caller in the
// request context. Requests without a valid token get a 401.
func Middleware(manager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractBearer(r)
			if !ok {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := manager.ValidateAccess(token)
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			userID, err := claims.GetUserID()
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			caller := &Caller{
				UserID:   userID,
				Username: claims.Username,
			}
			ctx := context.WithValue(r.Context(), callerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer extracts the token from the Authorization header
func extractBearer(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// CallerFromContext extracts caller info from context
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(callerContextKey).(*Caller)
	return caller, ok
}

// WithCaller returns a context carrying the given caller. Used by tests and
// internal call sites that bypass the HTTP middleware.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, caller)
}
