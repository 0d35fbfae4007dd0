// Package vectorstore provides interfaces and implementations for namespaced
// vector storage and nearest-neighbor search.
package vectorstore

import (
	"context"

	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
)

// Point is one stored vector with its payload, keyed by the owning item's id
type Point struct {
	ID         string
	Vector     []float32
	Content    string
	ExternalID string
}

// SearchResult is one ranked neighbor returned by a search
type SearchResult struct {
	ID         string
	Content    string
	ExternalID string
	Score      float32
}

// VectorStore defines the operations the engine needs from a vector index.
// Namespaces isolate the points of one collection; the point id always equals
// the relational item id.
type VectorStore interface {
	// CreateNamespace creates an empty namespace for vectors of the given
	// dimension, scored under the given metric.
	CreateNamespace(ctx context.Context, name string, dimension int, metric similarity.Metric) error

	// DeleteNamespace removes a namespace and all its points
	DeleteNamespace(ctx context.Context, name string) error

	// NamespaceExists reports whether a namespace exists
	NamespaceExists(ctx context.Context, name string) (bool, error)

	// CopyNamespace copies every point from one existing namespace into
	// another existing namespace.
	CopyNamespace(ctx context.Context, from, to string) error

	// Count returns the number of points in a namespace
	Count(ctx context.Context, name string) (int, error)

	// Upsert inserts or replaces points by id
	Upsert(ctx context.Context, name string, points []Point) error

	// DeletePoints removes points by id
	DeletePoints(ctx context.Context, name string, ids []string) error

	// Search returns up to k nearest neighbors ordered by descending score
	Search(ctx context.Context, name string, vector []float32, k int) ([]SearchResult, error)
}
