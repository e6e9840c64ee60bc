package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
)

func addEmbedding(t *testing.T, store *MemoryStore, key string) *core.EmbeddingRecord {
	t.Helper()
	record := &core.EmbeddingRecord{
		Key:    key,
		Vector: []float32{0.1, 0.2, 0.3},
		Title:  "title " + key,
	}
	if err := store.Embeddings.Put(context.Background(), record); err != nil {
		t.Fatalf("Failed to put embedding %s: %v", key, err)
	}
	return record
}

func TestEmbeddingPutGet(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	addEmbedding(t, store, "9780000000011")

	record, err := store.Embeddings.Get(ctx, "9780000000011")
	if err != nil {
		t.Fatalf("Failed to get embedding: %v", err)
	}
	if len(record.Vector) != 3 {
		t.Fatalf("Expected 3-dim vector, got %d", len(record.Vector))
	}
	if record.SyncedToIndex {
		t.Fatal("New record must start unsynced")
	}
	if record.InsertedAt.IsZero() {
		t.Fatal("Expected InsertedAt to be set")
	}

	_, err = store.Embeddings.Get(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestEmbeddingFindUnsyncedOrder(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	// Insertion order defines sync order, regardless of key order
	keys := []string{"9780000000031", "9780000000011", "9780000000021"}
	for _, key := range keys {
		addEmbedding(t, store, key)
		time.Sleep(2 * time.Millisecond)
	}

	unsynced, err := store.Embeddings.FindUnsynced(ctx, 0)
	if err != nil {
		t.Fatalf("Failed to find unsynced: %v", err)
	}
	if len(unsynced) != 3 {
		t.Fatalf("Expected 3 unsynced, got %d", len(unsynced))
	}
	for i, key := range keys {
		if unsynced[i].Key != key {
			t.Fatalf("Position %d: expected %s, got %s", i, key, unsynced[i].Key)
		}
	}

	limited, err := store.Embeddings.FindUnsynced(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to find unsynced: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("Expected 2 with limit, got %d", len(limited))
	}

	count, err := store.Embeddings.CountUnsynced(ctx)
	if err != nil {
		t.Fatalf("Failed to count unsynced: %v", err)
	}
	if count != 3 {
		t.Fatalf("Expected count 3, got %d", count)
	}
}

func TestEmbeddingEnsurePointID(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	addEmbedding(t, store, "9780000000011")

	first, err := store.Embeddings.EnsurePointID(ctx, "9780000000011")
	if err != nil {
		t.Fatalf("Failed to ensure point id: %v", err)
	}
	if first == "" {
		t.Fatal("Expected a minted point id")
	}

	// The token is stable across calls
	second, err := store.Embeddings.EnsurePointID(ctx, "9780000000011")
	if err != nil {
		t.Fatalf("Failed to ensure point id: %v", err)
	}
	if second != first {
		t.Fatalf("Point id changed: %s -> %s", first, second)
	}

	// And persisted on the record
	record, err := store.Embeddings.Get(ctx, "9780000000011")
	if err != nil {
		t.Fatalf("Failed to get embedding: %v", err)
	}
	if record.PointID != first {
		t.Fatalf("Stored point id %s, expected %s", record.PointID, first)
	}

	_, err = store.Embeddings.EnsurePointID(ctx, "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestEmbeddingMarkSyncedAndReset(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	addEmbedding(t, store, "9780000000011")
	addEmbedding(t, store, "9780000000021")

	pointID, err := store.Embeddings.EnsurePointID(ctx, "9780000000011")
	if err != nil {
		t.Fatalf("Failed to ensure point id: %v", err)
	}
	other, err := store.Embeddings.EnsurePointID(ctx, "9780000000021")
	if err != nil {
		t.Fatalf("Failed to ensure point id: %v", err)
	}

	tokens := map[string]string{"9780000000011": pointID, "9780000000021": other}
	if err := store.Embeddings.MarkSynced(ctx, tokens); err != nil {
		t.Fatalf("Failed to mark synced: %v", err)
	}

	count, err := store.Embeddings.CountUnsynced(ctx)
	if err != nil {
		t.Fatalf("Failed to count unsynced: %v", err)
	}
	if count != 0 {
		t.Fatalf("Expected 0 unsynced after marking, got %d", count)
	}

	reset, err := store.Embeddings.ResetSynced(ctx)
	if err != nil {
		t.Fatalf("Failed to reset: %v", err)
	}
	if reset != 2 {
		t.Fatalf("Expected 2 reset, got %d", reset)
	}

	count, err = store.Embeddings.CountUnsynced(ctx)
	if err != nil {
		t.Fatalf("Failed to count unsynced: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 unsynced after reset, got %d", count)
	}

	// Point ids survive the reset so a rebuild reuses the same points
	record, err := store.Embeddings.Get(ctx, "9780000000011")
	if err != nil {
		t.Fatalf("Failed to get embedding: %v", err)
	}
	if record.PointID != pointID {
		t.Fatalf("Point id lost on reset: %s -> %s", pointID, record.PointID)
	}
	if record.SyncedToIndex {
		t.Fatal("Expected record to be unsynced after reset")
	}
}

func TestEmbeddingMarkSyncedTokenMismatch(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	addEmbedding(t, store, "9780000000011")

	if _, err := store.Embeddings.EnsurePointID(ctx, "9780000000011"); err != nil {
		t.Fatalf("Failed to ensure point id: %v", err)
	}

	err = store.Embeddings.MarkSynced(ctx, map[string]string{"9780000000011": "stale-token"})
	if !errors.Is(err, storage.ErrPointIDMismatch) {
		t.Fatalf("Expected ErrPointIDMismatch, got %v", err)
	}

	// The failed transaction must leave the record on the queue
	record, err := store.Embeddings.Get(ctx, "9780000000011")
	if err != nil {
		t.Fatalf("Failed to get embedding: %v", err)
	}
	if record.SyncedToIndex {
		t.Fatal("Expected record to stay unsynced after a token mismatch")
	}
}

func TestEmbeddingUpdateRequeues(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	addEmbedding(t, store, "9780000000011")

	pointID, err := store.Embeddings.EnsurePointID(ctx, "9780000000011")
	if err != nil {
		t.Fatalf("Failed to ensure point id: %v", err)
	}
	if err := store.Embeddings.MarkSynced(ctx, map[string]string{"9780000000011": pointID}); err != nil {
		t.Fatalf("Failed to mark synced: %v", err)
	}

	// A rewritten vector goes back on the queue with the same token
	updated := &core.EmbeddingRecord{
		Key:    "9780000000011",
		Vector: []float32{0.9, 0.8, 0.7},
	}
	if err := store.Embeddings.Put(ctx, updated); err != nil {
		t.Fatalf("Failed to update embedding: %v", err)
	}

	unsynced, err := store.Embeddings.FindUnsynced(ctx, 0)
	if err != nil {
		t.Fatalf("Failed to find unsynced: %v", err)
	}
	if len(unsynced) != 1 {
		t.Fatalf("Expected 1 unsynced, got %d", len(unsynced))
	}
	if unsynced[0].PointID != pointID {
		t.Fatalf("Point id lost on update: %s -> %s", pointID, unsynced[0].PointID)
	}
}

func TestQueryVectorCache(t *testing.T) {
	store, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	hash := core.HashText(core.NormalizeText("dragons and magic"))

	_, err = store.Embeddings.CachedQueryVector(ctx, hash)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for empty cache, got %v", err)
	}

	vector := []float32{0.5, 0.4, 0.3}
	if err := store.Embeddings.CacheQueryVector(ctx, hash, vector); err != nil {
		t.Fatalf("Failed to cache vector: %v", err)
	}

	cached, err := store.Embeddings.CachedQueryVector(ctx, hash)
	if err != nil {
		t.Fatalf("Failed to read cache: %v", err)
	}
	if len(cached) != 3 || cached[0] != 0.5 {
		t.Fatalf("Unexpected cached vector: %v", cached)
	}

	// Cached query vectors never enter the sync queue
	count, err := store.Embeddings.CountUnsynced(ctx)
	if err != nil {
		t.Fatalf("Failed to count unsynced: %v", err)
	}
	if count != 0 {
		t.Fatalf("Query cache leaked into sync queue: %d", count)
	}
}
