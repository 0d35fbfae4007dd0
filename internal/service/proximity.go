package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/alexbevz/ai-istok-sem-pro/internal/embedder"
	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
	"github.com/alexbevz/ai-istok-sem-pro/internal/vectorstore"
)

// CompareCandidate is one text to score against a comparison query. The
// external id is optional and echoed back untouched.
type CompareCandidate struct {
	Content    string
	ExternalID string
}

// ProximityMatch pairs a candidate's content and external id with its
// proximity score.
type ProximityMatch struct {
	Content    string
	ExternalID string
	Score      float32
}

// SearchRequest carries the parameters of a proximity search
type SearchRequest struct {
	Query    string
	Count    int
	MinScore float32
	// Save ingests the query content into the collection after a successful
	// search.
	Save bool
}

// ProximityService answers pairwise comparisons and k-NN searches over
// collection namespaces.
type ProximityService struct {
	collections repository.CollectionRepository
	itemSvc     *ItemService
	vectors     vectorstore.VectorStore
	embedder    embedder.Embedder
	metric      similarity.Metric
	logger      *slog.Logger
}

// NewProximityService creates a new ProximityService
func NewProximityService(
	collections repository.CollectionRepository,
	itemSvc *ItemService,
	vectors vectorstore.VectorStore,
	emb embedder.Embedder,
	metric similarity.Metric,
	logger *slog.Logger,
) *ProximityService {
	return &ProximityService{
		collections: collections,
		itemSvc:     itemSvc,
		vectors:     vectors,
		embedder:    emb,
		metric:      metric,
		logger:      logger,
	}
}

// Compare scores a query against every candidate under the configured
// metric. No collection is involved; the matches come back in candidate
// order, unfiltered, each echoing the candidate's content and external id.
func (s *ProximityService) Compare(ctx context.Context, query string, candidates []CompareCandidate) ([]ProximityMatch, error) {
	if len(candidates) == 0 {
		return []ProximityMatch{}, nil
	}

	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &VectorStoreError{Op: "embed", Err: err}
	}

	contents := make([]string, len(candidates))
	for i, candidate := range candidates {
		contents[i] = candidate.Content
	}
	candidateVectors, err := s.embedder.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, &VectorStoreError{Op: "embed", Err: err}
	}

	matches := make([]ProximityMatch, len(candidates))
	for i, vector := range candidateVectors {
		score, err := similarity.Score(s.metric, queryVector, vector)
		if err != nil {
			return nil, fmt.Errorf("failed to score candidate %d: %w", i, err)
		}
		matches[i] = ProximityMatch{
			Content:    candidates[i].Content,
			ExternalID: candidates[i].ExternalID,
			Score:      score,
		}
	}
	return matches, nil
}

// Search embeds the query and returns the collection's nearest neighbors
// with score >= MinScore, at most Count of them, in the store's ranking
// order. With Save set, the query content is ingested into the collection
// after the search.
func (s *ProximityService) Search(ctx context.Context, ownerID, collectionID uuid.UUID, req SearchRequest) ([]vectorstore.SearchResult, error) {
	collection, err := ownedCollection(ctx, s.collections, collectionID, ownerID)
	if err != nil {
		return nil, err
	}

	results, err := s.search(ctx, collection, req.Query, req.Count, req.MinScore)
	if err != nil {
		return nil, err
	}

	if req.Save {
		if _, err := s.itemSvc.AddOne(ctx, ownerID, collectionID, ItemInput{Content: req.Query}); err != nil {
			return nil, fmt.Errorf("failed to save query: %w", err)
		}
	}

	return results, nil
}

// SearchByItemID uses an owned item's content as the query. The item itself
// is excluded from the results.
func (s *ProximityService) SearchByItemID(ctx context.Context, ownerID, collectionID, itemID uuid.UUID, count int, minScore float32) ([]vectorstore.SearchResult, error) {
	return s.searchByRef(ctx, ownerID, collectionID, ItemRef{ID: itemID}, count, minScore)
}

// SearchByExternalID uses the content of the item with the given external id
// as the query. The item itself is excluded from the results.
func (s *ProximityService) SearchByExternalID(ctx context.Context, ownerID, collectionID uuid.UUID, externalID string, count int, minScore float32) ([]vectorstore.SearchResult, error) {
	return s.searchByRef(ctx, ownerID, collectionID, ItemRef{ExternalID: externalID}, count, minScore)
}

func (s *ProximityService) searchByRef(ctx context.Context, ownerID, collectionID uuid.UUID, ref ItemRef, count int, minScore float32) ([]vectorstore.SearchResult, error) {
	collection, err := ownedCollection(ctx, s.collections, collectionID, ownerID)
	if err != nil {
		return nil, err
	}

	item, err := s.itemSvc.resolve(ctx, collection, ref)
	if err != nil {
		return nil, err
	}

	// One extra neighbor covers the source item showing up in its own
	// results.
	results, err := s.search(ctx, collection, item.Content, count+1, minScore)
	if err != nil {
		return nil, err
	}

	selfID := item.ID.String()
	filtered := results[:0]
	for _, result := range results {
		if result.ID == selfID {
			continue
		}
		filtered = append(filtered, result)
	}
	if len(filtered) > count {
		filtered = filtered[:count]
	}
	return filtered, nil
}

func (s *ProximityService) search(ctx context.Context, collection *repository.Collection, query string, count int, minScore float32) ([]vectorstore.SearchResult, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &VectorStoreError{Op: "embed", Err: err}
	}

	results, err := s.vectors.Search(ctx, collection.IndexNamespace, vector, count)
	if err != nil {
		return nil, &VectorStoreError{Op: "search", Err: err}
	}

	filtered := make([]vectorstore.SearchResult, 0, len(results))
	for _, result := range results {
		if result.Score >= minScore {
			filtered = append(filtered, result)
		}
	}
	return filtered, nil
}
