// Package server exposes the services over a REST API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/alexbevz/ai-istok-sem-pro/internal/auth"
	"github.com/alexbevz/ai-istok-sem-pro/internal/service"
)

// HTTPServer wraps an HTTP server around the chi router
type HTTPServer struct {
	server *http.Server
	logger *slog.Logger
}

// HTTPServerConfig holds configuration for the HTTP server
type HTTPServerConfig struct {
	Port        int
	Logger      *slog.Logger
	JWTManager  *auth.JWTManager
	Accounts    *service.AccountService
	Collections *service.CollectionService
	Items       *service.ItemService
	Proximity   *service.ProximityService

	// DefaultTopK and DefaultMinScore apply to search requests that omit
	// count or min_score.
	DefaultTopK     int
	DefaultMinScore float32
}

// NewHTTPServer creates a new HTTP server with all routes registered
func NewHTTPServer(cfg HTTPServerConfig) *HTTPServer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defaultTopK := cfg.DefaultTopK
	if defaultTopK <= 0 {
		defaultTopK = 5
	}

	h := &handlers{
		logger:          logger,
		accounts:        cfg.Accounts,
		collections:     cfg.Collections,
		items:           cfg.Items,
		proximity:       cfg.Proximity,
		defaultTopK:     defaultTopK,
		defaultMinScore: cfg.DefaultMinScore,
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLoggingMiddleware(logger))
	router.Use(middleware.Recoverer)

	router.Get("/healthz", healthCheckHandler())

	router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", h.register)
		r.Post("/auth/login", h.login)
		r.Post("/auth/refresh", h.refresh)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.JWTManager))

			r.Post("/compare", h.compare)

			r.Route("/collections", func(r chi.Router) {
				r.Post("/", h.createCollection)
				r.Get("/", h.listCollections)

				r.Route("/{collectionID}", func(r chi.Router) {
					r.Get("/", h.getCollection)
					r.Patch("/", h.renameCollection)
					r.Delete("/", h.deleteCollection)

					r.Post("/search", h.search)
					r.Post("/search/item", h.searchByItem)

					r.Route("/items", func(r chi.Router) {
						r.Post("/", h.addItem)
						r.Post("/batch", h.addItemBatch)
						r.Post("/file", h.addItemsFromFile)
						r.Get("/", h.listItems)

						r.Route("/{itemRef}", func(r chi.Router) {
							r.Get("/", h.getItem)
							r.Put("/", h.editItem)
							r.Delete("/", h.deleteItem)
						})
					})
				})
			})
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &HTTPServer{server: server, logger: logger}
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP server shutdown error: %w", err)
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// requestLoggingMiddleware logs HTTP requests
func requestLoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// healthCheckHandler returns a handler for the /healthz endpoint
func healthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps domain errors to HTTP status codes
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError

	var vsErr *service.VectorStoreError
	switch {
	case errors.Is(err, service.ErrCollectionNotFound),
		errors.Is(err, service.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrCollectionExists),
		errors.Is(err, service.ErrUserExists),
		errors.Is(err, service.ErrWrongCollection):
		status = http.StatusConflict
	case errors.Is(err, service.ErrBatchTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrMissingFileColumns):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	case errors.As(err, &vsErr):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError || status == http.StatusBadGateway {
		logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
