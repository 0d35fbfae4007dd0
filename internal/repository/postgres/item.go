package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ItemRepo implements repository.ItemRepository
type ItemRepo struct {
	db *DB
}

// NewItemRepo creates a new item repository
func NewItemRepo(db *DB) *ItemRepo {
	return &ItemRepo{db: db}
}

// CreateBatch inserts all items in a single transaction. The ids are the
// correlation keys for the vector store, so nothing may be upserted there
// until this commit succeeds.
func (r *ItemRepo) CreateBatch(ctx context.Context, items []*repository.Item) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO items (id, collection_id, content, external_id, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.CollectionID, item.Content, item.ExternalID, item.CreatedAt)
	}

	results := tx.SendBatch(ctx, batch)
	for range items {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert item: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// GetByID retrieves an item by ID
func (r *ItemRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.Item, error) {
	query := `
		SELECT id, collection_id, content, external_id, created_at
		FROM items
		WHERE id = $1
	`
	return r.scanItem(ctx, query, id)
}

// GetByExternalID retrieves an item by its caller-supplied external ID within
// a collection. External ids are not unique; the oldest match wins.
func (r *ItemRepo) GetByExternalID(ctx context.Context, collectionID uuid.UUID, externalID string) (*repository.Item, error) {
	query := `
		SELECT id, collection_id, content, external_id, created_at
		FROM items
		WHERE collection_id = $1 AND external_id = $2
		ORDER BY created_at
		LIMIT 1
	`
	return r.scanItem(ctx, query, collectionID, externalID)
}

func (r *ItemRepo) scanItem(ctx context.Context, query string, args ...any) (*repository.Item, error) {
	var item repository.Item
	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&item.ID, &item.CollectionID, &item.Content, &item.ExternalID, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

// List retrieves items of a collection with pagination and the total count
func (r *ItemRepo) List(ctx context.Context, collectionID uuid.UUID, page repository.Page) ([]*repository.Item, int, error) {
	var total int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM items WHERE collection_id = $1`, collectionID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count items: %w", err)
	}

	query := `
		SELECT id, collection_id, content, external_id, created_at
		FROM items
		WHERE collection_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Pool.Query(ctx, query, collectionID, page.Limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*repository.Item
	for rows.Next() {
		var item repository.Item
		if err := rows.Scan(&item.ID, &item.CollectionID, &item.Content,
			&item.ExternalID, &item.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, &item)
	}
	return items, total, rows.Err()
}

// Update updates an item's content and external ID
func (r *ItemRepo) Update(ctx context.Context, item *repository.Item) error {
	query := `
		UPDATE items
		SET content = $2, external_id = $3
		WHERE id = $1
	`
	result, err := r.db.Pool.Exec(ctx, query, item.ID, item.Content, item.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete deletes an item row
func (r *ItemRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeleteByCollection deletes all items of a collection and reports how many
// rows were removed
func (r *ItemRepo) DeleteByCollection(ctx context.Context, collectionID uuid.UUID) (int, error) {
	result, err := r.db.Pool.Exec(ctx,
		`DELETE FROM items WHERE collection_id = $1`, collectionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items: %w", err)
	}
	return int(result.RowsAffected()), nil
}

// Ensure ItemRepo implements the interface
var _ repository.ItemRepository = (*ItemRepo)(nil)
