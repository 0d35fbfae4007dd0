package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
	"github.com/alexbevz/ai-istok-sem-pro/internal/vectorstore"
)

// CollectionService manages collections and keeps each collection's vector
// namespace in step with its relational row.
type CollectionService struct {
	collections repository.CollectionRepository
	items       repository.ItemRepository
	vectors     vectorstore.VectorStore
	dimension   int
	metric      similarity.Metric
	logger      *slog.Logger
}

// NewCollectionService creates a new CollectionService
func NewCollectionService(
	collections repository.CollectionRepository,
	items repository.ItemRepository,
	vectors vectorstore.VectorStore,
	dimension int,
	metric similarity.Metric,
	logger *slog.Logger,
) *CollectionService {
	return &CollectionService{
		collections: collections,
		items:       items,
		vectors:     vectors,
		dimension:   dimension,
		metric:      metric,
		logger:      logger,
	}
}

// newNamespace generates a globally unique vector namespace name
func newNamespace() string {
	return "col_" + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// Create creates a collection with a fresh vector namespace. The namespace is
// created first; if the relational insert fails, the namespace is deleted
// again so no unreachable namespace survives a failed create.
func (s *CollectionService) Create(ctx context.Context, ownerID uuid.UUID, name string) (*repository.Collection, error) {
	namespace := newNamespace()

	if err := s.vectors.CreateNamespace(ctx, namespace, s.dimension, s.metric); err != nil {
		return nil, &VectorStoreError{Op: "create namespace", Err: err}
	}

	collection := &repository.Collection{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Name:           name,
		IndexNamespace: namespace,
		CreatedAt:      time.Now(),
	}

	if err := s.collections.Create(ctx, collection); err != nil {
		if deleteErr := s.vectors.DeleteNamespace(ctx, namespace); deleteErr != nil {
			s.logger.Error("failed to delete namespace after failed collection insert",
				"namespace", namespace, "error", deleteErr)
		}
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrCollectionExists
		}
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	return collection, nil
}

// List returns the caller's collections ordered by creation time
func (s *CollectionService) List(ctx context.Context, ownerID uuid.UUID) ([]*repository.Collection, error) {
	collections, err := s.collections.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return collections, nil
}

// Get returns an owned collection together with its namespace point count.
// The count is best effort: a vector store error yields zero.
func (s *CollectionService) Get(ctx context.Context, ownerID, id uuid.UUID) (*repository.Collection, int, error) {
	collection, err := ownedCollection(ctx, s.collections, id, ownerID)
	if err != nil {
		return nil, 0, err
	}

	count, err := s.vectors.Count(ctx, collection.IndexNamespace)
	if err != nil {
		s.logger.Warn("failed to count namespace points",
			"namespace", collection.IndexNamespace, "error", err)
		count = 0
	}

	return collection, count, nil
}

// Rename renames a collection. The vector namespace is rotated: a new
// namespace is created, every point is copied over, the old namespace is
// deleted, and only then is the row repointed. An interruption can orphan the
// new namespace; it is logged for manual cleanup, never reconciled
// automatically.
func (s *CollectionService) Rename(ctx context.Context, ownerID, id uuid.UUID, newName string) (*repository.Collection, error) {
	collection, err := ownedCollection(ctx, s.collections, id, ownerID)
	if err != nil {
		return nil, err
	}

	oldNamespace := collection.IndexNamespace
	freshNamespace := newNamespace()

	if err := s.vectors.CreateNamespace(ctx, freshNamespace, s.dimension, s.metric); err != nil {
		return nil, &VectorStoreError{Op: "create namespace", Err: err}
	}

	if err := s.vectors.CopyNamespace(ctx, oldNamespace, freshNamespace); err != nil {
		s.logger.Error("rename interrupted, namespace may be orphaned",
			"collection_id", id, "namespace", freshNamespace, "error", err)
		return nil, &VectorStoreError{Op: "copy namespace", Err: err}
	}

	if err := s.vectors.DeleteNamespace(ctx, oldNamespace); err != nil {
		s.logger.Error("rename left old namespace behind",
			"collection_id", id, "namespace", oldNamespace, "error", err)
	}

	collection.Name = newName
	collection.IndexNamespace = freshNamespace
	if err := s.collections.Update(ctx, collection); err != nil {
		s.logger.Error("rename interrupted, namespace may be orphaned",
			"collection_id", id, "namespace", freshNamespace, "error", err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to update collection: %w", err)
	}

	return collection, nil
}

// Delete removes a collection, its vector namespace, and its items, and
// returns the deleted record. The namespace goes first, then the row, then
// the dependent item rows.
func (s *CollectionService) Delete(ctx context.Context, ownerID, id uuid.UUID) (*repository.Collection, error) {
	collection, err := ownedCollection(ctx, s.collections, id, ownerID)
	if err != nil {
		return nil, err
	}

	if err := s.vectors.DeleteNamespace(ctx, collection.IndexNamespace); err != nil {
		return nil, &VectorStoreError{Op: "delete namespace", Err: err}
	}

	if err := s.collections.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCollectionNotFound
		}
		return nil, fmt.Errorf("failed to delete collection: %w", err)
	}

	removed, err := s.items.DeleteByCollection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to delete collection items: %w", err)
	}
	s.logger.Info("collection deleted",
		"collection_id", id, "namespace", collection.IndexNamespace, "items_removed", removed)

	return collection, nil
}
