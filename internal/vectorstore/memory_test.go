package vectorstore

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
)

func TestMemoryStore_NamespaceLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateNamespace(ctx, "ns", 2, similarity.Cosine); err != nil {
		t.Fatalf("failed to create namespace: %v", err)
	}

	exists, err := store.NamespaceExists(ctx, "ns")
	if err != nil {
		t.Fatalf("failed to check namespace: %v", err)
	}
	if !exists {
		t.Error("expected namespace to exist")
	}

	if err := store.CreateNamespace(ctx, "ns", 2, similarity.Cosine); err == nil {
		t.Error("expected duplicate create to fail")
	}

	if err := store.DeleteNamespace(ctx, "ns"); err != nil {
		t.Fatalf("failed to delete namespace: %v", err)
	}
	exists, _ = store.NamespaceExists(ctx, "ns")
	if exists {
		t.Error("expected namespace to be gone")
	}

	if err := store.DeleteNamespace(ctx, "ns"); err == nil {
		t.Error("expected delete of missing namespace to fail")
	}
}

func TestMemoryStore_UpsertRejectsWrongDimension(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateNamespace(ctx, "ns", 2, similarity.Cosine); err != nil {
		t.Fatalf("failed to create namespace: %v", err)
	}

	err := store.Upsert(ctx, "ns", []Point{{ID: uuid.NewString(), Vector: []float32{1, 2, 3}}})
	if err == nil {
		t.Error("expected dimension mismatch to fail")
	}
}

func TestMemoryStore_SearchOrdersByScore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateNamespace(ctx, "ns", 2, similarity.Cosine); err != nil {
		t.Fatalf("failed to create namespace: %v", err)
	}

	points := []Point{
		{ID: uuid.NewString(), Vector: []float32{1, 0}, Content: "exact"},
		{ID: uuid.NewString(), Vector: []float32{1, 1}, Content: "diagonal"},
		{ID: uuid.NewString(), Vector: []float32{0, 1}, Content: "orthogonal"},
	}
	if err := store.Upsert(ctx, "ns", points); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	results, err := store.Search(ctx, "ns", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content != "exact" || results[1].Content != "diagonal" {
		t.Errorf("unexpected order: %q, %q", results[0].Content, results[1].Content)
	}
	if results[0].Score < results[1].Score {
		t.Error("expected descending scores")
	}
}

func TestMemoryStore_UpsertReplacesByID(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateNamespace(ctx, "ns", 2, similarity.Cosine); err != nil {
		t.Fatalf("failed to create namespace: %v", err)
	}

	id := uuid.NewString()
	if err := store.Upsert(ctx, "ns", []Point{{ID: id, Vector: []float32{1, 0}, Content: "v1"}}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := store.Upsert(ctx, "ns", []Point{{ID: id, Vector: []float32{0, 1}, Content: "v2"}}); err != nil {
		t.Fatalf("failed to re-upsert: %v", err)
	}

	count, _ := store.Count(ctx, "ns")
	if count != 1 {
		t.Errorf("expected 1 point after replace, got %d", count)
	}

	results, _ := store.Search(ctx, "ns", []float32{0, 1}, 1)
	if len(results) != 1 || results[0].Content != "v2" {
		t.Errorf("expected replaced content, got %+v", results)
	}
}

func TestMemoryStore_CopyNamespace(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateNamespace(ctx, "src", 2, similarity.Cosine); err != nil {
		t.Fatalf("failed to create source: %v", err)
	}
	if err := store.Upsert(ctx, "src", []Point{
		{ID: uuid.NewString(), Vector: []float32{1, 0}},
		{ID: uuid.NewString(), Vector: []float32{0, 1}},
	}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	// Target must exist first
	if err := store.CopyNamespace(ctx, "src", "dst"); err == nil {
		t.Error("expected copy into missing namespace to fail")
	}

	if err := store.CreateNamespace(ctx, "dst", 2, similarity.Cosine); err != nil {
		t.Fatalf("failed to create target: %v", err)
	}
	if err := store.CopyNamespace(ctx, "src", "dst"); err != nil {
		t.Fatalf("failed to copy: %v", err)
	}

	count, err := store.Count(ctx, "dst")
	if err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 copied points, got %d", count)
	}
}

func TestMemoryStore_DeletePoints(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.CreateNamespace(ctx, "ns", 2, similarity.Cosine); err != nil {
		t.Fatalf("failed to create namespace: %v", err)
	}

	keep := uuid.NewString()
	drop := uuid.NewString()
	if err := store.Upsert(ctx, "ns", []Point{
		{ID: keep, Vector: []float32{1, 0}},
		{ID: drop, Vector: []float32{0, 1}},
	}); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	if err := store.DeletePoints(ctx, "ns", []string{drop}); err != nil {
		t.Fatalf("failed to delete points: %v", err)
	}

	count, _ := store.Count(ctx, "ns")
	if count != 1 {
		t.Errorf("expected 1 point left, got %d", count)
	}
	results, _ := store.Search(ctx, "ns", []float32{1, 0}, 10)
	if len(results) != 1 || results[0].ID != keep {
		t.Errorf("expected only the kept point, got %+v", results)
	}
}
