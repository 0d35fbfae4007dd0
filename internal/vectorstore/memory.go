package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
)

// MemoryStore is an in-process VectorStore doing brute-force scoring. It
// backs local development and tests, where a Qdrant instance is not
// available.
type MemoryStore struct {
	mu         sync.RWMutex
	namespaces map[string]*memoryNamespace
}

type memoryNamespace struct {
	dimension int
	metric    similarity.Metric
	points    map[string]Point
}

// NewMemoryStore creates an empty in-memory vector store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{namespaces: make(map[string]*memoryNamespace)}
}

// CreateNamespace creates an empty namespace
func (s *MemoryStore) CreateNamespace(ctx context.Context, name string, dimension int, metric similarity.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.namespaces[name]; ok {
		return fmt.Errorf("namespace %q already exists", name)
	}
	s.namespaces[name] = &memoryNamespace{
		dimension: dimension,
		metric:    metric,
		points:    make(map[string]Point),
	}
	return nil
}

// DeleteNamespace removes a namespace and its points
func (s *MemoryStore) DeleteNamespace(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.namespaces[name]; !ok {
		return fmt.Errorf("namespace %q does not exist", name)
	}
	delete(s.namespaces, name)
	return nil
}

// NamespaceExists reports whether a namespace exists
func (s *MemoryStore) NamespaceExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.namespaces[name]
	return ok, nil
}

// CopyNamespace copies every point from one namespace into another
func (s *MemoryStore) CopyNamespace(ctx context.Context, from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.namespaces[from]
	if !ok {
		return fmt.Errorf("namespace %q does not exist", from)
	}
	dst, ok := s.namespaces[to]
	if !ok {
		return fmt.Errorf("namespace %q does not exist", to)
	}
	for id, point := range src.points {
		dst.points[id] = point
	}
	return nil
}

// Count returns the number of points in a namespace
func (s *MemoryStore) Count(ctx context.Context, name string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.namespaces[name]
	if !ok {
		return 0, fmt.Errorf("namespace %q does not exist", name)
	}
	return len(ns.points), nil
}

// Upsert inserts or replaces points by id
func (s *MemoryStore) Upsert(ctx context.Context, name string, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[name]
	if !ok {
		return fmt.Errorf("namespace %q does not exist", name)
	}
	for _, point := range points {
		if len(point.Vector) != ns.dimension {
			return fmt.Errorf("vector dimension %d does not match namespace dimension %d",
				len(point.Vector), ns.dimension)
		}
		ns.points[point.ID] = point
	}
	return nil
}

// DeletePoints removes points by id
func (s *MemoryStore) DeletePoints(ctx context.Context, name string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[name]
	if !ok {
		return fmt.Errorf("namespace %q does not exist", name)
	}
	for _, id := range ids {
		delete(ns.points, id)
	}
	return nil
}

// Search scores every stored point against the query vector and returns the
// top k by descending score. Ties keep an unspecified order, matching the
// absence of a tie-break guarantee in external stores.
func (s *MemoryStore) Search(ctx context.Context, name string, vector []float32, k int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ns, ok := s.namespaces[name]
	if !ok {
		return nil, fmt.Errorf("namespace %q does not exist", name)
	}

	results := make([]SearchResult, 0, len(ns.points))
	for _, point := range ns.points {
		score, err := similarity.Score(ns.metric, vector, point.Vector)
		if err != nil {
			return nil, fmt.Errorf("failed to score point %q: %w", point.ID, err)
		}
		results = append(results, SearchResult{
			ID:         point.ID,
			Content:    point.Content,
			ExternalID: point.ExternalID,
			Score:      score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k >= 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Ensure MemoryStore implements VectorStore
var _ VectorStore = (*MemoryStore)(nil)
