package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alexbevz/ai-istok-sem-pro/internal/auth"
	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
)

// AccountService handles registration and credential-based login
type AccountService struct {
	users repository.UserRepository
	jwt   *auth.JWTManager
}

// NewAccountService creates a new AccountService
func NewAccountService(users repository.UserRepository, jwt *auth.JWTManager) *AccountService {
	return &AccountService{users: users, jwt: jwt}
}

// Register creates a user with a bcrypt-hashed password
func (s *AccountService) Register(ctx context.Context, username, password, email string) (*repository.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &repository.User{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: hash,
		Email:        email,
		CreatedAt:    time.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and issues an access/refresh token pair
func (s *AccountService) Login(ctx context.Context, username, password string) (*auth.TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	return s.jwt.GeneratePair(user.ID, user.Username)
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	return s.jwt.Refresh(refreshToken)
}
