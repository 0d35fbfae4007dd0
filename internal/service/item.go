package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alexbevz/ai-istok-sem-pro/internal/embedder"
	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/alexbevz/ai-istok-sem-pro/internal/vectorstore"
)

// ItemInput is one item to ingest
type ItemInput struct {
	Content    string
	ExternalID string
}

// ItemRef identifies an item either by its row id or by the caller-supplied
// external id. When both are set the row id wins.
type ItemRef struct {
	ID         uuid.UUID
	ExternalID string
}

// ItemService ingests, edits, and removes items, keeping each relational row
// paired with a vector point of the same id.
type ItemService struct {
	collections  repository.CollectionRepository
	items        repository.ItemRepository
	vectors      vectorstore.VectorStore
	embedder     embedder.Embedder
	maxBatchSize int
	logger       *slog.Logger
}

// NewItemService creates a new ItemService
func NewItemService(
	collections repository.CollectionRepository,
	items repository.ItemRepository,
	vectors vectorstore.VectorStore,
	emb embedder.Embedder,
	maxBatchSize int,
	logger *slog.Logger,
) *ItemService {
	return &ItemService{
		collections:  collections,
		items:        items,
		vectors:      vectors,
		embedder:     emb,
		maxBatchSize: maxBatchSize,
		logger:       logger,
	}
}

// AddOne ingests a single item
func (s *ItemService) AddOne(ctx context.Context, ownerID, collectionID uuid.UUID, input ItemInput) (*repository.Item, error) {
	items, err := s.AddBatch(ctx, ownerID, collectionID, []ItemInput{input})
	if err != nil {
		return nil, err
	}
	return items[0], nil
}

// AddBatch ingests a batch of items. The batch size is validated before any
// write. All relational rows are inserted in one transaction, then every
// content is embedded and upserted into the collection's namespace under the
// row id. A failure after the relational insert leaves the rows in place and
// is reported as a VectorStoreError.
func (s *ItemService) AddBatch(ctx context.Context, ownerID, collectionID uuid.UUID, inputs []ItemInput) ([]*repository.Item, error) {
	collection, err := ownedCollection(ctx, s.collections, collectionID, ownerID)
	if err != nil {
		return nil, err
	}

	if len(inputs) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d items, maximum is %d", ErrBatchTooLarge, len(inputs), s.maxBatchSize)
	}
	if len(inputs) == 0 {
		return nil, nil
	}

	return s.addBatch(ctx, collection, inputs)
}

// addBatch inserts and indexes one already-validated batch
func (s *ItemService) addBatch(ctx context.Context, collection *repository.Collection, inputs []ItemInput) ([]*repository.Item, error) {
	now := time.Now()
	items := make([]*repository.Item, len(inputs))
	contents := make([]string, len(inputs))
	for i, input := range inputs {
		items[i] = &repository.Item{
			ID:           uuid.New(),
			CollectionID: collection.ID,
			Content:      input.Content,
			ExternalID:   input.ExternalID,
			CreatedAt:    now,
		}
		contents[i] = input.Content
	}

	if err := s.items.CreateBatch(ctx, items); err != nil {
		return nil, fmt.Errorf("failed to insert items: %w", err)
	}

	vectors, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, &VectorStoreError{Op: "embed", Err: err}
	}

	// Cancellation is honored up to here; once the upsert starts it runs to
	// completion so the point set stays whole.
	if err := ctx.Err(); err != nil {
		return nil, &VectorStoreError{Op: "upsert", Err: err}
	}

	points := make([]vectorstore.Point, len(items))
	for i, item := range items {
		points[i] = vectorstore.Point{
			ID:         item.ID.String(),
			Vector:     vectors[i],
			Content:    item.Content,
			ExternalID: item.ExternalID,
		}
	}
	if err := s.vectors.Upsert(ctx, collection.IndexNamespace, points); err != nil {
		s.logger.Error("item rows inserted but vector upsert failed",
			"collection_id", collection.ID, "namespace", collection.IndexNamespace,
			"items", len(items), "error", err)
		return nil, &VectorStoreError{Op: "upsert", Err: err}
	}

	return items, nil
}

// AddFromFile parses an uploaded file into items and ingests them in chunks
// of at most maxBatchSize. Each chunk commits independently; on failure the
// count of items already ingested is still reported.
func (s *ItemService) AddFromFile(ctx context.Context, ownerID, collectionID uuid.UUID, filename string, content []byte, separator string) (int, error) {
	collection, err := ownedCollection(ctx, s.collections, collectionID, ownerID)
	if err != nil {
		return 0, err
	}

	inputs, err := ParseItemsFile(filename, content, separator)
	if err != nil {
		return 0, err
	}

	created := 0
	for start := 0; start < len(inputs); start += s.maxBatchSize {
		end := start + s.maxBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		if _, err := s.addBatch(ctx, collection, inputs[start:end]); err != nil {
			return created, err
		}
		created += end - start
	}

	return created, nil
}

// Get returns an owned item resolved by id or external id
func (s *ItemService) Get(ctx context.Context, ownerID, collectionID uuid.UUID, ref ItemRef) (*repository.Item, error) {
	collection, err := ownedCollection(ctx, s.collections, collectionID, ownerID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, collection, ref)
}

// List returns a page of a collection's items with the total count
func (s *ItemService) List(ctx context.Context, ownerID, collectionID uuid.UUID, page repository.Page) ([]*repository.Item, int, error) {
	if _, err := ownedCollection(ctx, s.collections, collectionID, ownerID); err != nil {
		return nil, 0, err
	}

	items, total, err := s.items.List(ctx, collectionID, page)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list items: %w", err)
	}
	return items, total, nil
}

// Edit updates an item's content and external id, then re-embeds and
// re-upserts its vector point in place. The last write wins.
func (s *ItemService) Edit(ctx context.Context, ownerID, collectionID uuid.UUID, ref ItemRef, input ItemInput) (*repository.Item, error) {
	collection, err := ownedCollection(ctx, s.collections, collectionID, ownerID)
	if err != nil {
		return nil, err
	}

	item, err := s.resolve(ctx, collection, ref)
	if err != nil {
		return nil, err
	}

	item.Content = input.Content
	item.ExternalID = input.ExternalID
	if err := s.items.Update(ctx, item); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	vector, err := s.embedder.Embed(ctx, item.Content)
	if err != nil {
		return nil, &VectorStoreError{Op: "embed", Err: err}
	}

	if err := ctx.Err(); err != nil {
		return nil, &VectorStoreError{Op: "upsert", Err: err}
	}

	point := vectorstore.Point{
		ID:         item.ID.String(),
		Vector:     vector,
		Content:    item.Content,
		ExternalID: item.ExternalID,
	}
	if err := s.vectors.Upsert(ctx, collection.IndexNamespace, []vectorstore.Point{point}); err != nil {
		s.logger.Error("item row updated but vector upsert failed",
			"item_id", item.ID, "namespace", collection.IndexNamespace, "error", err)
		return nil, &VectorStoreError{Op: "upsert", Err: err}
	}

	return item, nil
}

// Delete removes an item row and its vector point, returning the deleted
// record.
func (s *ItemService) Delete(ctx context.Context, ownerID, collectionID uuid.UUID, ref ItemRef) (*repository.Item, error) {
	collection, err := ownedCollection(ctx, s.collections, collectionID, ownerID)
	if err != nil {
		return nil, err
	}

	item, err := s.resolve(ctx, collection, ref)
	if err != nil {
		return nil, err
	}

	if err := s.items.Delete(ctx, item.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to delete item: %w", err)
	}

	if err := s.vectors.DeletePoints(ctx, collection.IndexNamespace, []string{item.ID.String()}); err != nil {
		s.logger.Error("item row deleted but vector point remains",
			"item_id", item.ID, "namespace", collection.IndexNamespace, "error", err)
		return nil, &VectorStoreError{Op: "delete points", Err: err}
	}

	return item, nil
}

// resolve looks up an item by row id or external id and verifies it belongs
// to the collection.
func (s *ItemService) resolve(ctx context.Context, collection *repository.Collection, ref ItemRef) (*repository.Item, error) {
	if ref.ID != uuid.Nil {
		item, err := s.items.GetByID(ctx, ref.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrItemNotFound
			}
			return nil, fmt.Errorf("failed to get item: %w", err)
		}
		if item.CollectionID != collection.ID {
			return nil, ErrWrongCollection
		}
		return item, nil
	}

	item, err := s.items.GetByExternalID(ctx, collection.ID, ref.ExternalID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}
