package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/alexbevz/ai-istok-sem-pro/internal/repository"
	"github.com/alexbevz/ai-istok-sem-pro/internal/similarity"
)

func TestProximityService_Compare_PreservesOrder(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	env.embed.set("query", []float32{1, 0, 0, 0})
	env.embed.set("identical", []float32{1, 0, 0, 0})
	env.embed.set("orthogonal", []float32{0, 1, 0, 0})
	env.embed.set("opposite", []float32{-1, 0, 0, 0})

	matches, err := env.proximitySvc.Compare(ctx, "query", []CompareCandidate{
		{Content: "orthogonal", ExternalID: "c-1"},
		{Content: "identical"},
		{Content: "opposite", ExternalID: "c-3"},
	})
	if err != nil {
		t.Fatalf("failed to compare: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}

	if math.Abs(float64(matches[0].Score)) > 1e-6 {
		t.Errorf("expected ~0 for orthogonal, got %f", matches[0].Score)
	}
	if math.Abs(float64(matches[1].Score)-1) > 1e-6 {
		t.Errorf("expected ~1 for identical, got %f", matches[1].Score)
	}
	if math.Abs(float64(matches[2].Score)+1) > 1e-6 {
		t.Errorf("expected ~-1 for opposite, got %f", matches[2].Score)
	}

	// Each match echoes its candidate's content and external id
	if matches[0].Content != "orthogonal" || matches[0].ExternalID != "c-1" {
		t.Errorf("unexpected first match: %+v", matches[0])
	}
	if matches[1].Content != "identical" || matches[1].ExternalID != "" {
		t.Errorf("unexpected second match: %+v", matches[1])
	}
	if matches[2].Content != "opposite" || matches[2].ExternalID != "c-3" {
		t.Errorf("unexpected third match: %+v", matches[2])
	}
}

func TestProximityService_Compare_SelfMatchReachesMetricMaximum(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	matches, err := env.proximitySvc.Compare(ctx, "same text", []CompareCandidate{
		{Content: "same text"},
	})
	if err != nil {
		t.Fatalf("failed to compare: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}

	want := similarity.MaxScore(similarity.Cosine)
	if math.Abs(float64(matches[0].Score-want)) > 1e-6 {
		t.Errorf("expected self-match score ~%f, got %f", want, matches[0].Score)
	}
}

func TestProximityService_Compare_NoCandidates(t *testing.T) {
	env := newTestEnv(t, 10)

	matches, err := env.proximitySvc.Compare(context.Background(), "anything", nil)
	if err != nil {
		t.Fatalf("failed to compare: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches, got %v", matches)
	}
}

func TestProximityService_Search_FiltersAndTruncates(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	env.embed.set("query", []float32{1, 0, 0, 0})
	env.embed.set("close", []float32{1, 0.1, 0, 0})
	env.embed.set("near", []float32{1, 0.5, 0, 0})
	env.embed.set("far", []float32{0, 1, 0, 0})

	collection := env.createCollection(t, "searchable")
	if _, err := env.itemSvc.AddBatch(ctx, env.owner, collection.ID, []ItemInput{
		{Content: "close"}, {Content: "near"}, {Content: "far"},
	}); err != nil {
		t.Fatalf("failed to add items: %v", err)
	}

	results, err := env.proximitySvc.Search(ctx, env.owner, collection.ID, SearchRequest{
		Query:    "query",
		Count:    10,
		MinScore: 0.5,
	})
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}

	// "far" scores 0 against the query and is filtered out
	if len(results) != 2 {
		t.Fatalf("expected 2 results above threshold, got %d", len(results))
	}
	if results[0].Content != "close" || results[1].Content != "near" {
		t.Errorf("unexpected ranking: %q, %q", results[0].Content, results[1].Content)
	}
	if results[0].Score < results[1].Score {
		t.Error("expected descending score order")
	}

	// Count truncates
	results, err = env.proximitySvc.Search(ctx, env.owner, collection.ID, SearchRequest{
		Query: "query",
		Count: 1,
	})
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "close" {
		t.Errorf("expected only the closest result, got %+v", results)
	}
}

func TestProximityService_Search_ThresholdAboveCeilingReturnsNothing(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	env.embed.set("stored", []float32{1, 0, 0, 0})
	env.embed.set("stored again", []float32{1, 0, 0, 0})

	collection := env.createCollection(t, "ceiling")
	if _, err := env.itemSvc.AddBatch(ctx, env.owner, collection.ID, []ItemInput{
		{Content: "stored"}, {Content: "stored again"},
	}); err != nil {
		t.Fatalf("failed to add items: %v", err)
	}

	// Even an exact duplicate cannot clear a threshold above the metric's
	// maximum attainable score.
	results, err := env.proximitySvc.Search(ctx, env.owner, collection.ID, SearchRequest{
		Query:    "stored",
		Count:    10,
		MinScore: similarity.MaxScore(similarity.Cosine) + 0.01,
	})
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results above the metric ceiling, got %d", len(results))
	}
}

func TestProximityService_Search_SaveIngestsQuery(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	collection := env.createCollection(t, "self-growing")
	if _, err := env.itemSvc.AddOne(ctx, env.owner, collection.ID, ItemInput{Content: "seed"}); err != nil {
		t.Fatalf("failed to add item: %v", err)
	}

	_, err := env.proximitySvc.Search(ctx, env.owner, collection.ID, SearchRequest{
		Query: "remember me",
		Count: 5,
		Save:  true,
	})
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}

	items, total, err := env.itemSvc.List(ctx, env.owner, collection.ID, repository.DefaultPage())
	if err != nil {
		t.Fatalf("failed to list items: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected the query to be ingested, got %d rows", total)
	}
	if items[1].Content != "remember me" {
		t.Errorf("expected saved query content, got %q", items[1].Content)
	}
}

func TestProximityService_Search_Forbidden(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	collection := env.createCollection(t, "private")

	_, err := env.proximitySvc.Search(ctx, env.stranger, collection.ID, SearchRequest{
		Query: "peek",
		Count: 5,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestProximityService_SearchByItemID_ExcludesSelf(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	env.embed.set("anchor", []float32{1, 0, 0, 0})
	env.embed.set("twin", []float32{1, 0.01, 0, 0})
	env.embed.set("other", []float32{0.5, 0.5, 0, 0})

	collection := env.createCollection(t, "neighbors")
	anchor, err := env.itemSvc.AddOne(ctx, env.owner, collection.ID, ItemInput{Content: "anchor"})
	if err != nil {
		t.Fatalf("failed to add anchor: %v", err)
	}
	if _, err := env.itemSvc.AddBatch(ctx, env.owner, collection.ID, []ItemInput{
		{Content: "twin"}, {Content: "other"},
	}); err != nil {
		t.Fatalf("failed to add items: %v", err)
	}

	results, err := env.proximitySvc.SearchByItemID(ctx, env.owner, collection.ID, anchor.ID, 2, -1)
	if err != nil {
		t.Fatalf("failed to search by item: %v", err)
	}

	for _, result := range results {
		if result.ID == anchor.ID.String() {
			t.Error("expected the source item to be excluded from results")
		}
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Content != "twin" {
		t.Errorf("expected 'twin' as nearest neighbor, got %q", results[0].Content)
	}
}

func TestProximityService_SearchByExternalID(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	env.embed.set("source", []float32{1, 0, 0, 0})
	env.embed.set("nearby", []float32{1, 0.1, 0, 0})

	collection := env.createCollection(t, "by-external")
	if _, err := env.itemSvc.AddBatch(ctx, env.owner, collection.ID, []ItemInput{
		{Content: "source", ExternalID: "src-1"},
		{Content: "nearby"},
	}); err != nil {
		t.Fatalf("failed to add items: %v", err)
	}

	results, err := env.proximitySvc.SearchByExternalID(ctx, env.owner, collection.ID, "src-1", 5, -1)
	if err != nil {
		t.Fatalf("failed to search: %v", err)
	}
	if len(results) != 1 || results[0].Content != "nearby" {
		t.Errorf("expected only the neighbor, got %+v", results)
	}
}

func TestProximityService_SearchByExternalID_NotFound(t *testing.T) {
	env := newTestEnv(t, 10)
	ctx := context.Background()

	collection := env.createCollection(t, "empty")

	_, err := env.proximitySvc.SearchByExternalID(ctx, env.owner, collection.ID, "missing", 5, 0)
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}
