package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/alexbevz/ai-istok-sem-pro/internal/repository/memory"
	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
	"github.com/alexbevz/ai-istok-sem-pro/internal/vectorstore"
)

const testDimension = 4

// stubEmbedder returns fixed vectors for known texts and a deterministic
// hash-derived vector for everything else.
type stubEmbedder struct {
	vectors map[string][]float32
	fail    bool
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: make(map[string][]float32)}
}

func (e *stubEmbedder) set(text string, vector []float32) {
	e.vectors[text] = vector
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.fail {
		return nil, errors.New("embedder unavailable")
	}
	if vector, ok := e.vectors[text]; ok {
		return vector, nil
	}
	vector := make([]float32, testDimension)
	for i := range vector {
		h := fnv.New32a()
		fmt.Fprintf(h, "%s:%d", text, i)
		vector[i] = float32(h.Sum32()%1000)/1000 + 0.001
	}
	return vector, nil
}

func (e *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vector
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int { return testDimension }

func (e *stubEmbedder) ModelName() string { return "stub" }

// flakyStore wraps a vector store and fails selected operations
type flakyStore struct {
	vectorstore.VectorStore
	failUpsert bool
	failCopy   bool
}

func (s *flakyStore) Upsert(ctx context.Context, name string, points []vectorstore.Point) error {
	if s.failUpsert {
		return errors.New("upsert unavailable")
	}
	return s.VectorStore.Upsert(ctx, name, points)
}

func (s *flakyStore) CopyNamespace(ctx context.Context, from, to string) error {
	if s.failCopy {
		return errors.New("copy unavailable")
	}
	return s.VectorStore.CopyNamespace(ctx, from, to)
}

// recordingStore tracks which namespaces were created through it
type recordingStore struct {
	vectorstore.VectorStore
	created []string
}

func (s *recordingStore) CreateNamespace(ctx context.Context, name string, dimension int, metric similarity.Metric) error {
	s.created = append(s.created, name)
	return s.VectorStore.CreateNamespace(ctx, name, dimension, metric)
}

// conflictCollectionRepo rejects every insert with a conflict
type conflictCollectionRepo struct {
	repository.CollectionRepository
}

func (r *conflictCollectionRepo) Create(ctx context.Context, collection *repository.Collection) error {
	return repository.ErrConflict
}

type testEnv struct {
	users       *memory.UserRepo
	collections *memory.CollectionRepo
	items       *memory.ItemRepo
	vectors     *vectorstore.MemoryStore
	embed       *stubEmbedder

	collectionSvc *CollectionService
	itemSvc       *ItemService
	proximitySvc  *ProximityService

	owner    uuid.UUID
	stranger uuid.UUID
}

func newTestEnv(t *testing.T, maxBatchSize int) *testEnv {
	t.Helper()

	env := &testEnv{
		users:       memory.NewUserRepo(),
		collections: memory.NewCollectionRepo(),
		items:       memory.NewItemRepo(),
		vectors:     vectorstore.NewMemoryStore(),
		embed:       newStubEmbedder(),
		owner:       uuid.New(),
		stranger:    uuid.New(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env.collectionSvc = NewCollectionService(env.collections, env.items, env.vectors, testDimension, similarity.Cosine, logger)
	env.itemSvc = NewItemService(env.collections, env.items, env.vectors, env.embed, maxBatchSize, logger)
	env.proximitySvc = NewProximityService(env.collections, env.itemSvc, env.vectors, env.embed, similarity.Cosine, logger)
	return env
}

// createCollection is a shorthand for tests that need one in place
func (env *testEnv) createCollection(t *testing.T, name string) *repository.Collection {
	t.Helper()

	collection, err := env.collectionSvc.Create(context.Background(), env.owner, name)
	if err != nil {
		t.Fatalf("failed to create collection: %v", err)
	}
	return collection
}
