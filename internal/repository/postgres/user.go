package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// UserRepo implements repository.UserRepository
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create creates a new user
func (r *UserRepo) Create(ctx context.Context, user *repository.User) error {
	query := `
		INSERT INTO users (id, username, password_hash, email, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		user.ID, user.Username, user.PasswordHash, user.Email, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.User, error) {
	query := `
		SELECT id, username, password_hash, email, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(ctx, query, id)
}

// GetByUsername retrieves a user by username
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	query := `
		SELECT id, username, password_hash, email, created_at
		FROM users
		WHERE username = $1
	`
	return r.scanUser(ctx, query, username)
}

func (r *UserRepo) scanUser(ctx context.Context, query string, args ...any) (*repository.User, error) {
	var user repository.User
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Email, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// Ensure UserRepo implements the interface
var _ repository.UserRepository = (*UserRepo)(nil)
