package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
)

func TestCollectionService_Create(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	collection := env.createCollection(t, "recipes")

	if collection.Name != "recipes" {
		t.Errorf("expected name 'recipes', got %q", collection.Name)
	}
	if !strings.HasPrefix(collection.IndexNamespace, "col_") {
		t.Errorf("unexpected namespace format %q", collection.IndexNamespace)
	}

	exists, err := env.vectors.NamespaceExists(ctx, collection.IndexNamespace)
	if err != nil {
		t.Fatalf("failed to check namespace: %v", err)
	}
	if !exists {
		t.Error("expected namespace to exist after create")
	}
}

func TestCollectionService_Create_UniqueNamespaces(t *testing.T) {
	env := newTestEnv(t, 10)

	first := env.createCollection(t, "same-name")
	second := env.createCollection(t, "same-name")

	if first.IndexNamespace == second.IndexNamespace {
		t.Error("two collections share one namespace")
	}
}

func TestCollectionService_Create_CompensatesNamespaceOnInsertFailure(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	recorder := &recordingStore{VectorStore: env.vectors}
	svc := NewCollectionService(
		&conflictCollectionRepo{CollectionRepository: env.collections},
		env.items, recorder, testDimension, similarity.Cosine, logger,
	)

	_, err := svc.Create(ctx, env.owner, "doomed")
	if !errors.Is(err, ErrCollectionExists) {
		t.Fatalf("expected ErrCollectionExists, got %v", err)
	}

	// The namespace created before the failed insert must be gone
	if len(recorder.created) != 1 {
		t.Fatalf("expected 1 namespace to be created, got %d", len(recorder.created))
	}
	exists, err := env.vectors.NamespaceExists(ctx, recorder.created[0])
	if err != nil {
		t.Fatalf("failed to check namespace: %v", err)
	}
	if exists {
		t.Error("expected namespace to be deleted after failed insert")
	}
}

func TestCollectionService_Get_ReportsPointCount(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	collection := env.createCollection(t, "notes")
	if _, err := env.itemSvc.AddBatch(ctx, env.owner, collection.ID, []ItemInput{
		{Content: "first"}, {Content: "second"},
	}); err != nil {
		t.Fatalf("failed to add items: %v", err)
	}

	_, size, err := env.collectionSvc.Get(ctx, env.owner, collection.ID)
	if err != nil {
		t.Fatalf("failed to get collection: %v", err)
	}
	if size != 2 {
		t.Errorf("expected 2 points, got %d", size)
	}
}

func TestCollectionService_Get_Forbidden(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	collection := env.createCollection(t, "private")

	_, _, err := env.collectionSvc.Get(ctx, env.stranger, collection.ID)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCollectionService_Rename_RotatesNamespace(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	collection := env.createCollection(t, "old-name")
	oldNamespace := collection.IndexNamespace

	if _, err := env.itemSvc.AddBatch(ctx, env.owner, collection.ID, []ItemInput{
		{Content: "kept point"},
	}); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}

	renamed, err := env.collectionSvc.Rename(ctx, env.owner, collection.ID, "new-name")
	if err != nil {
		t.Fatalf("failed to rename: %v", err)
	}

	if renamed.Name != "new-name" {
		t.Errorf("expected name 'new-name', got %q", renamed.Name)
	}
	if renamed.IndexNamespace == oldNamespace {
		t.Error("expected a fresh namespace after rename")
	}

	oldExists, _ := env.vectors.NamespaceExists(ctx, oldNamespace)
	if oldExists {
		t.Error("expected old namespace to be deleted")
	}

	count, err := env.vectors.Count(ctx, renamed.IndexNamespace)
	if err != nil {
		t.Fatalf("failed to count points: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 point after rename, got %d", count)
	}
}

func TestCollectionService_Rename_CopyFailureKeepsOldRow(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	collection := env.createCollection(t, "stable")
	oldNamespace := collection.IndexNamespace

	flaky := &flakyStore{VectorStore: env.vectors, failCopy: true}
	svc := NewCollectionService(env.collections, env.items, flaky, testDimension, similarity.Cosine, logger)

	_, err := svc.Rename(ctx, env.owner, collection.ID, "renamed")
	var vsErr *VectorStoreError
	if !errors.As(err, &vsErr) {
		t.Fatalf("expected VectorStoreError, got %v", err)
	}

	got, _, err := env.collectionSvc.Get(ctx, env.owner, collection.ID)
	if err != nil {
		t.Fatalf("failed to get collection: %v", err)
	}
	if got.Name != "stable" || got.IndexNamespace != oldNamespace {
		t.Errorf("expected row untouched after failed rename, got name=%q namespace=%q",
			got.Name, got.IndexNamespace)
	}
}

func TestCollectionService_Delete(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	collection := env.createCollection(t, "ephemeral")
	if _, err := env.itemSvc.AddBatch(ctx, env.owner, collection.ID, []ItemInput{
		{Content: "gone soon"},
	}); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}

	deleted, err := env.collectionSvc.Delete(ctx, env.owner, collection.ID)
	if err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if deleted.ID != collection.ID {
		t.Error("expected the deleted record to be returned")
	}

	exists, _ := env.vectors.NamespaceExists(ctx, collection.IndexNamespace)
	if exists {
		t.Error("expected namespace to be deleted")
	}

	// Reads against the deleted collection fail on the collection itself
	_, err = env.itemSvc.Get(ctx, env.owner, collection.ID, ItemRef{ExternalID: "anything"})
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Fatalf("expected ErrCollectionNotFound, got %v", err)
	}
}

func TestCollectionService_List_OnlyOwn(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	env.createCollection(t, "mine")

	collections, err := env.collectionSvc.List(ctx, env.stranger)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(collections) != 0 {
		t.Errorf("expected no collections for stranger, got %d", len(collections))
	}
}
