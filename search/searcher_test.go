package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfederowicz/bookrec/ai"
	"github.com/mfederowicz/bookrec/ai/mock"
	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage/badger"
	"github.com/mfederowicz/bookrec/vectorstore"
	"github.com/mfederowicz/bookrec/vectorstore/memory"
)

func setupSearcher(t *testing.T, queryVector []float32) (*badger.MemoryStore, *memory.Index, *Searcher) {
	t.Helper()

	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	index := memory.NewIndex()
	require.NoError(t, index.EnsureCollection(context.Background(), DefaultCollection, 3))

	inner := mock.NewMockEmbedder()
	inner.Dimension = 3
	inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return queryVector, nil
	}
	embedder, err := ai.NewBatchEmbedder(inner, ai.NewConfig(ai.WithDimension(3)))
	require.NoError(t, err)

	searcher, err := NewSearcher(store.Ebooks, index, embedder)
	require.NoError(t, err)
	return store, index, searcher
}

func addBook(t *testing.T, store *badger.MemoryStore, index *memory.Index, isbn, title string, vector []float32) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Ebooks.AddEbooks(ctx, &core.Ebook{ISBN: isbn, Title: title})
	require.NoError(t, err)

	require.NoError(t, index.UpsertBatch(ctx, DefaultCollection, []vectorstore.Point{
		{ID: "point-" + isbn, Vector: vector, Payload: map[string]any{"isbn": isbn, "title": title}},
	}))
}

func TestFindSimilarRanksByScore(t *testing.T) {
	store, index, searcher := setupSearcher(t, []float32{1, 0, 0})

	addBook(t, store, index, "9780000000011", "Close", []float32{0.9, 0.1, 0})
	addBook(t, store, index, "9780000000021", "Closest", []float32{1, 0, 0})
	addBook(t, store, index, "9780000000031", "Far", []float32{0, 1, 0})

	hits, err := searcher.FindSimilar(context.Background(), "dragons", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "Closest", hits[0].Ebook.Title)
	assert.Equal(t, "Close", hits[1].Ebook.Title)
	assert.Equal(t, "Far", hits[2].Ebook.Title)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.GreaterOrEqual(t, hits[1].Score, hits[2].Score)
}

func TestFindSimilarLimit(t *testing.T) {
	store, index, searcher := setupSearcher(t, []float32{1, 0, 0})

	addBook(t, store, index, "9780000000011", "A", []float32{1, 0, 0})
	addBook(t, store, index, "9780000000021", "B", []float32{0.9, 0.1, 0})
	addBook(t, store, index, "9780000000031", "C", []float32{0.8, 0.2, 0})

	hits, err := searcher.FindSimilar(context.Background(), "anything", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestFindSimilarSkipsIndexDrift(t *testing.T) {
	store, index, searcher := setupSearcher(t, []float32{1, 0, 0})
	ctx := context.Background()

	addBook(t, store, index, "9780000000011", "Kept", []float32{1, 0, 0})

	// A point whose book is gone from the catalog
	require.NoError(t, index.UpsertBatch(ctx, DefaultCollection, []vectorstore.Point{
		{ID: "orphan", Vector: []float32{0.95, 0.05, 0}, Payload: map[string]any{"isbn": "9780000000099"}},
	}))

	// A point with no catalog key in its payload at all
	require.NoError(t, index.UpsertBatch(ctx, DefaultCollection, []vectorstore.Point{
		{ID: "keyless", Vector: []float32{0.9, 0.1, 0}, Payload: map[string]any{"title": "???"}},
	}))

	hits, err := searcher.FindSimilar(ctx, "anything", 10)
	require.NoError(t, err, "index drift is skipped, never an error")
	require.Len(t, hits, 1)
	assert.Equal(t, "Kept", hits[0].Ebook.Title)
}

func TestFindSimilarEmptyQuery(t *testing.T) {
	_, _, searcher := setupSearcher(t, []float32{1, 0, 0})

	_, err := searcher.FindSimilar(context.Background(), "   ", 10)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestFindSimilarEmptyIndex(t *testing.T) {
	_, _, searcher := setupSearcher(t, []float32{1, 0, 0})

	hits, err := searcher.FindSimilar(context.Background(), "anything", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestFindSimilarVectorSkipsEmbedding(t *testing.T) {
	store, index, searcher := setupSearcher(t, nil) // embedder would return nil vector

	addBook(t, store, index, "9780000000011", "Direct", []float32{0, 0, 1})

	hits, err := searcher.FindSimilarVector(context.Background(), []float32{0, 0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Direct", hits[0].Ebook.Title)
}

func TestNewSearcherValidation(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	embedder, err := ai.NewBatchEmbedder(mock.NewMockEmbedder(), ai.DefaultConfig())
	require.NoError(t, err)

	_, err = NewSearcher(nil, memory.NewIndex(), embedder)
	assert.ErrorIs(t, err, ErrCatalogRequired)

	_, err = NewSearcher(store.Ebooks, nil, embedder)
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewSearcher(store.Ebooks, memory.NewIndex(), nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
