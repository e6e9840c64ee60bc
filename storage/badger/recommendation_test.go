package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
)

func TestRecommendationDeduplication(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	hash := core.HashText(core.NormalizeText("  Dragons & MAGIC!! "))

	first, err := store.Recommendations.Put(ctx, &core.Recommendation{
		UserID:   42,
		Text:     "  Dragons & MAGIC!! ",
		TextHash: hash,
	})
	if err != nil {
		t.Fatalf("Failed to put recommendation: %v", err)
	}
	if first.Id == 0 {
		t.Fatal("Expected derived ID")
	}

	// Equivalent text, same user: same row
	second, err := store.Recommendations.Put(ctx, &core.Recommendation{
		UserID:   42,
		Text:     "dragons magic",
		TextHash: hash,
	})
	if err != nil {
		t.Fatalf("Failed to put recommendation: %v", err)
	}
	if second.Id != first.Id {
		t.Fatalf("Expected same ID, got %d and %d", first.Id, second.Id)
	}
	if !second.InsertedAt.Equal(first.InsertedAt) {
		t.Fatal("InsertedAt must survive updates")
	}

	// Same text, different user: different row
	other, err := store.Recommendations.Put(ctx, &core.Recommendation{
		UserID:   7,
		Text:     "dragons magic",
		TextHash: hash,
	})
	if err != nil {
		t.Fatalf("Failed to put recommendation: %v", err)
	}
	if other.Id == first.Id {
		t.Fatal("Different users must get different recommendations")
	}

	found, err := store.Recommendations.GetByUserAndHash(ctx, 42, hash)
	if err != nil {
		t.Fatalf("Failed to get by user and hash: %v", err)
	}
	if found.Id != first.Id {
		t.Fatalf("Expected ID %d, got %d", first.Id, found.Id)
	}
	if found.Text != "dragons magic" {
		t.Fatalf("Expected latest raw text, got %q", found.Text)
	}

	_, err = store.Recommendations.GetByUserAndHash(ctx, 42, "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecommendationReplaceResults(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	rec, err := store.Recommendations.Put(ctx, &core.Recommendation{
		UserID:   1,
		Text:     "space opera",
		TextHash: core.HashText("space opera"),
	})
	if err != nil {
		t.Fatalf("Failed to put recommendation: %v", err)
	}

	first := []*core.RecommendationResult{
		{ISBN: "9780000000011", Score: 0.9, Rank: 1},
		{ISBN: "9780000000021", Score: 0.8, Rank: 2},
		{ISBN: "9780000000031", Score: 0.7, Rank: 3},
	}
	if err := store.Recommendations.ReplaceResults(ctx, rec.Id, first); err != nil {
		t.Fatalf("Failed to store results: %v", err)
	}

	// The replacement set fully supersedes the old one
	second := []*core.RecommendationResult{
		{ISBN: "9780000000041", Score: 0.95, Rank: 1},
		{ISBN: "9780000000021", Score: 0.6, Rank: 2},
	}
	if err := store.Recommendations.ReplaceResults(ctx, rec.Id, second); err != nil {
		t.Fatalf("Failed to replace results: %v", err)
	}

	results, err := store.Recommendations.ResultsFor(ctx, rec.Id)
	if err != nil {
		t.Fatalf("Failed to get results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].ISBN != "9780000000041" || results[0].Rank != 1 {
		t.Fatalf("Wrong first result: %+v", results[0])
	}
	if results[1].ISBN != "9780000000021" || results[1].Rank != 2 {
		t.Fatalf("Wrong second result: %+v", results[1])
	}
	for _, result := range results {
		if result.RecommendationID != rec.Id {
			t.Fatalf("Result not linked to recommendation: %+v", result)
		}
	}

	// Replacing with nothing clears the set
	if err := store.Recommendations.ReplaceResults(ctx, rec.Id, nil); err != nil {
		t.Fatalf("Failed to clear results: %v", err)
	}
	results, err = store.Recommendations.ResultsFor(ctx, rec.Id)
	if err != nil {
		t.Fatalf("Failed to get results: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Expected no results, got %d", len(results))
	}
}

func TestRecommendationFindStale(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	fresh := &core.Recommendation{
		UserID: 1, Text: "a", TextHash: "ha",
		FoundBooksCount: 3, LastSearchAt: now,
	}
	outdated := &core.Recommendation{
		UserID: 1, Text: "b", TextHash: "hb",
		FoundBooksCount: 5, LastSearchAt: now.Add(-30 * 24 * time.Hour),
	}
	empty := &core.Recommendation{
		UserID: 1, Text: "c", TextHash: "hc",
		FoundBooksCount: 0, LastSearchAt: now,
	}
	for _, rec := range []*core.Recommendation{fresh, outdated, empty} {
		if _, err := store.Recommendations.Put(ctx, rec); err != nil {
			t.Fatalf("Failed to put recommendation: %v", err)
		}
	}

	stale, err := store.Recommendations.FindStale(ctx, now.Add(-7*24*time.Hour), 0)
	if err != nil {
		t.Fatalf("Failed to find stale: %v", err)
	}
	if len(stale) != 2 {
		t.Fatalf("Expected 2 stale, got %d", len(stale))
	}
	for _, rec := range stale {
		if rec.Id == fresh.Id {
			t.Fatal("Fresh recommendation reported as stale")
		}
	}
}
