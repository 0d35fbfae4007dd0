package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CollectionRepo implements repository.CollectionRepository
type CollectionRepo struct {
	db *DB
}

// NewCollectionRepo creates a new collection repository
func NewCollectionRepo(db *DB) *CollectionRepo {
	return &CollectionRepo{db: db}
}

// Create creates a new collection. Returns repository.ErrConflict if the
// index namespace is already taken.
func (r *CollectionRepo) Create(ctx context.Context, collection *repository.Collection) error {
	query := `
		INSERT INTO collections (id, owner_id, name, index_namespace, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		collection.ID, collection.OwnerID, collection.Name,
		collection.IndexNamespace, collection.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// GetByID retrieves a collection by ID
func (r *CollectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Collection, error) {
	query := `
		SELECT id, owner_id, name, index_namespace, created_at
		FROM collections
		WHERE id = $1
	`
	var collection repository.Collection
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&collection.ID, &collection.OwnerID, &collection.Name,
		&collection.IndexNamespace, &collection.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &collection, nil
}

// ListByOwner retrieves all collections belonging to an owner
func (r *CollectionRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*repository.Collection, error) {
	query := `
		SELECT id, owner_id, name, index_namespace, created_at
		FROM collections
		WHERE owner_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var collections []*repository.Collection
	for rows.Next() {
		var collection repository.Collection
		if err := rows.Scan(&collection.ID, &collection.OwnerID, &collection.Name,
			&collection.IndexNamespace, &collection.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, &collection)
	}
	return collections, rows.Err()
}

// Update updates a collection's name and namespace pointer
func (r *CollectionRepo) Update(ctx context.Context, collection *repository.Collection) error {
	query := `
		UPDATE collections
		SET name = $2, index_namespace = $3
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query,
		collection.ID, collection.Name, collection.IndexNamespace)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete deletes a collection row
func (r *CollectionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Ensure CollectionRepo implements the interface
var _ repository.CollectionRepository = (*CollectionRepo)(nil)
