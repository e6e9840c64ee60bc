package indexsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
	"github.com/mfederowicz/bookrec/storage/badger"
	"github.com/mfederowicz/bookrec/vectorstore"
	"github.com/mfederowicz/bookrec/vectorstore/memory"
)

// flakyIndex wraps the in-memory index and fails upserts on demand.
type flakyIndex struct {
	*memory.Index
	failUpserts bool
}

func (f *flakyIndex) UpsertBatch(ctx context.Context, name string, points []vectorstore.Point) error {
	if f.failUpserts {
		return fmt.Errorf("%w: injected failure", vectorstore.ErrUnavailable)
	}
	return f.Index.UpsertBatch(ctx, name, points)
}

func setupEngine(t *testing.T, index vectorstore.Index, config *Config) (*badger.MemoryStore, *Engine) {
	t.Helper()

	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	if config == nil {
		config = &Config{Collection: "ebooks", Dimension: 3, BatchSize: 2, ReportInterval: 2}
	}

	engine, err := NewEngine(store.Embeddings, index, config, &bytes.Buffer{})
	require.NoError(t, err)
	return store, engine
}

func addRecords(t *testing.T, store *badger.MemoryStore, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		record := &core.EmbeddingRecord{
			Key:    fmt.Sprintf("978000000%04d", i),
			Vector: []float32{float32(i), 1, 0},
			Title:  fmt.Sprintf("Book %d", i),
		}
		require.NoError(t, store.Embeddings.Put(ctx, record))
	}
}

func TestEngineRunSyncsEverything(t *testing.T) {
	index := memory.NewIndex()
	store, engine := setupEngine(t, index, nil)
	addRecords(t, store, 5)

	ctx := context.Background()
	result, err := engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 5, result.Synced)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Errors)

	// The queue is empty and every point landed in the index
	count, err := store.Embeddings.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	info, err := index.CollectionInfo(ctx, "ebooks")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 5, info.PointsCount)

	// A second pass is a no-op
	result, err = engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
}

func TestEngineFailedUpsertKeepsRecordsPending(t *testing.T) {
	index := &flakyIndex{Index: memory.NewIndex(), failUpserts: true}
	store, engine := setupEngine(t, index, nil)
	addRecords(t, store, 3)

	ctx := context.Background()
	result, err := engine.Run(ctx)
	require.NoError(t, err, "batch failures are partial success, not run failure")

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 0, result.Synced)
	assert.Equal(t, 3, result.Errors)

	count, err := store.Embeddings.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	// Tokens were minted before the failed upsert and must be reused
	first, err := store.Embeddings.Get(ctx, "9780000000000")
	require.NoError(t, err)
	require.NotEmpty(t, first.PointID)

	index.failUpserts = false
	result, err = engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Synced)

	after, err := store.Embeddings.Get(ctx, "9780000000000")
	require.NoError(t, err)
	assert.Equal(t, first.PointID, after.PointID)

	info, err := index.CollectionInfo(ctx, "ebooks")
	require.NoError(t, err)
	assert.Equal(t, 3, info.PointsCount)
}

func TestEngineSkipsInvalidRecords(t *testing.T) {
	index := memory.NewIndex()
	store, engine := setupEngine(t, index, nil)
	addRecords(t, store, 2)

	// Wrong dimension for the configured collection
	require.NoError(t, store.Embeddings.Put(context.Background(), &core.EmbeddingRecord{
		Key:    "9780000009999",
		Vector: []float32{1, 2},
	}))

	result, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Synced)
	assert.Equal(t, 1, result.Skipped)
}

func TestEngineRunFullRebuildsSamePoints(t *testing.T) {
	index := memory.NewIndex()
	store, engine := setupEngine(t, index, nil)
	addRecords(t, store, 4)

	ctx := context.Background()
	_, err := engine.Run(ctx)
	require.NoError(t, err)

	record, err := store.Embeddings.Get(ctx, "9780000000000")
	require.NoError(t, err)
	pointID := record.PointID

	result, err := engine.RunFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Total)
	assert.Equal(t, 4, result.Synced)

	// Same tokens, so the rebuild overwrote instead of duplicating
	info, err := index.CollectionInfo(ctx, "ebooks")
	require.NoError(t, err)
	assert.Equal(t, 4, info.PointsCount)

	record, err = store.Embeddings.Get(ctx, "9780000000000")
	require.NoError(t, err)
	assert.Equal(t, pointID, record.PointID)
}

func TestEngineMaxBatches(t *testing.T) {
	index := memory.NewIndex()
	config := &Config{Collection: "ebooks", Dimension: 3, BatchSize: 2, MaxBatches: 1, ReportInterval: 10}
	store, engine := setupEngine(t, index, config)
	addRecords(t, store, 5)

	ctx := context.Background()
	result, err := engine.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 2, result.Synced)

	count, err := store.Embeddings.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// recordingStore wraps the embedding store and records every FindUnsynced limit.
type recordingStore struct {
	storage.EmbeddingRepository
	limits []int
}

func (s *recordingStore) FindUnsynced(ctx context.Context, limit int) ([]*core.EmbeddingRecord, error) {
	s.limits = append(s.limits, limit)
	return s.EmbeddingRepository.FindUnsynced(ctx, limit)
}

func TestEngineRunFetchesBoundedPages(t *testing.T) {
	index := memory.NewIndex()
	store, _ := setupEngine(t, index, nil)
	addRecords(t, store, 5)

	recording := &recordingStore{EmbeddingRepository: store.Embeddings}
	config := &Config{Collection: "ebooks", Dimension: 3, BatchSize: 2, ReportInterval: 10}
	engine, err := NewEngine(recording, index, config, &bytes.Buffer{})
	require.NoError(t, err)

	result, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, result.Synced)

	// Every fetch asked for one batch worth of records, never the whole set
	require.NotEmpty(t, recording.limits)
	for _, limit := range recording.limits {
		assert.Equal(t, config.BatchSize, limit)
	}
}

func TestEngineContextCancellation(t *testing.T) {
	index := memory.NewIndex()
	store, engine := setupEngine(t, index, nil)
	addRecords(t, store, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// Nothing was lost: all records are still pending
	count, err := store.Embeddings.CountUnsynced(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestNewEngineValidation(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	_, err = NewEngine(nil, memory.NewIndex(), nil, nil)
	assert.True(t, errors.Is(err, ErrStoreRequired))

	_, err = NewEngine(store.Embeddings, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrIndexRequired))
}
