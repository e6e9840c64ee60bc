package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfederowicz/bookrec/ai"
	"github.com/mfederowicz/bookrec/ai/mock"
	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/search"
	"github.com/mfederowicz/bookrec/storage/badger"
	"github.com/mfederowicz/bookrec/vectorstore"
	"github.com/mfederowicz/bookrec/vectorstore/memory"
)

type serviceFixture struct {
	store   *badger.MemoryStore
	index   *memory.Index
	inner   *mock.MockEmbedder
	service *Service
}

func setupService(t *testing.T) *serviceFixture {
	t.Helper()

	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	index := memory.NewIndex()
	require.NoError(t, index.EnsureCollection(context.Background(), search.DefaultCollection, 3))

	inner := mock.NewMockEmbedder()
	inner.Dimension = 3
	inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	embedder, err := ai.NewBatchEmbedder(inner, ai.NewConfig(ai.WithDimension(3)))
	require.NoError(t, err)

	searcher, err := search.NewSearcher(store.Ebooks, index, embedder)
	require.NoError(t, err)

	service, err := NewService(store.Recommendations, store.Tags, store.Embeddings, searcher, embedder, WithPoolSize(1))
	require.NoError(t, err)
	t.Cleanup(service.Release)

	return &serviceFixture{store: store, index: index, inner: inner, service: service}
}

func (f *serviceFixture) addBook(t *testing.T, isbn, title string, vector []float32) {
	t.Helper()
	ctx := context.Background()

	_, err := f.store.Ebooks.AddEbooks(ctx, &core.Ebook{ISBN: isbn, Title: title})
	require.NoError(t, err)

	require.NoError(t, f.index.UpsertBatch(ctx, search.DefaultCollection, []vectorstore.Point{
		{ID: "point-" + isbn, Vector: vector, Payload: map[string]any{"isbn": isbn}},
	}))
}

func TestCreateOrUpdateDeduplicates(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	first, err := f.service.CreateOrUpdateByNames(ctx, 7, "Epic fantasy with dragons", []string{"fantasy", "dragons"})
	require.NoError(t, err)
	require.NotZero(t, first.Id)
	assert.Len(t, first.TagIDs, 2)

	// Same request up to normalization, new tag set
	second, err := f.service.CreateOrUpdateByNames(ctx, 7, "  epic FANTASY with dragons!  ", []string{"epic"})
	require.NoError(t, err)

	assert.Equal(t, first.Id, second.Id)
	assert.Len(t, second.TagIDs, 1, "tag set is replaced, not merged")
	assert.Equal(t, "  epic FANTASY with dragons!  ", second.Text, "latest raw text wins")

	// A different user gets their own recommendation
	other, err := f.service.CreateOrUpdateByNames(ctx, 8, "Epic fantasy with dragons", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, other.Id)
}

func TestCreateOrUpdateEmptyRequest(t *testing.T) {
	f := setupService(t)

	_, err := f.service.CreateOrUpdate(context.Background(), 7, "  ???!!  ", nil)
	assert.ErrorIs(t, err, ErrEmptyRequest)
}

func TestCreateOrUpdateDropsUnusableTags(t *testing.T) {
	f := setupService(t)

	rec, err := f.service.CreateOrUpdateByNames(context.Background(), 7, "space opera", []string{"sci-fi", "???", "sci fi"})
	require.NoError(t, err)
	assert.Len(t, rec.TagIDs, 1, "unusable names dropped, slug duplicates collapsed")
}

func TestCreateOrUpdateDropsMissingTagIDs(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	tag, err := f.store.Tags.GetOrCreate(ctx, "fantasy")
	require.NoError(t, err)

	rec, err := f.service.CreateOrUpdate(ctx, 7, "sword and sorcery", []core.ID{tag.Id, 999, tag.Id})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{tag.Id}, rec.TagIDs, "unknown ids dropped, duplicates collapsed")
}

func TestProcessStoresRankedResults(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.addBook(t, "9780000000031", "Far", []float32{0, 1, 0})
	f.addBook(t, "9780000000011", "Closest", []float32{1, 0, 0})
	f.addBook(t, "9780000000021", "Close", []float32{0.9, 0.1, 0})

	rec, results, err := f.service.Process(ctx, 7, "dragons", nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 3, rec.FoundBooksCount)
	assert.False(t, rec.LastSearchAt.IsZero())

	for i, result := range results {
		assert.Equal(t, i+1, result.Rank)
		assert.Equal(t, rec.Id, result.RecommendationID)
	}
	assert.Equal(t, "9780000000011", results[0].ISBN)
	assert.Equal(t, "9780000000021", results[1].ISBN)
	assert.Equal(t, "9780000000031", results[2].ISBN)

	// Stored results round-trip through the repository
	stored, storedResults, err := f.service.ResultsFor(ctx, rec.Id)
	require.NoError(t, err)
	assert.Equal(t, rec.Id, stored.Id)
	require.Len(t, storedResults, 3)
	assert.Equal(t, "9780000000011", storedResults[0].ISBN)
}

func TestProcessTieBreaksByISBN(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	// Identical vectors, identical scores
	f.addBook(t, "9780000000021", "B", []float32{1, 0, 0})
	f.addBook(t, "9780000000011", "A", []float32{1, 0, 0})

	_, results, err := f.service.Process(ctx, 7, "dragons", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "9780000000011", results[0].ISBN)
	assert.Equal(t, "9780000000021", results[1].ISBN)
}

func TestProcessReplacesOldResults(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.addBook(t, "9780000000011", "A", []float32{1, 0, 0})

	rec, results, err := f.service.Process(ctx, 7, "dragons", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	f.addBook(t, "9780000000021", "B", []float32{0.9, 0.1, 0})

	again, results, err := f.service.Process(ctx, 7, "dragons", nil)
	require.NoError(t, err)
	assert.Equal(t, rec.Id, again.Id)
	require.Len(t, results, 2)
	assert.Equal(t, 2, again.FoundBooksCount)
}

func TestProcessReusesCachedQueryVector(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	calls := 0
	f.inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		calls++
		return []float32{1, 0, 0}, nil
	}

	f.addBook(t, "9780000000011", "A", []float32{1, 0, 0})

	_, _, err := f.service.Process(ctx, 7, "dragons", nil)
	require.NoError(t, err)
	require.Equal(t, 1, calls)

	_, _, err = f.service.Process(ctx, 7, "dragons", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "repeat request is served from the vector cache")

	// Same text from another user shares the cache too
	_, _, err = f.service.Process(ctx, 8, "dragons", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestProcessSearchFailureKeepsRequest(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	providerDown := errors.New("provider down")
	f.inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, providerDown
	}

	rec, results, err := f.service.Process(ctx, 7, "dragons", nil)
	require.Error(t, err)
	assert.Nil(t, results)
	require.NotNil(t, rec, "the request outlives the failed search")

	// The saved request is found again and a healthy retry succeeds
	f.inner.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}
	f.addBook(t, "9780000000011", "A", []float32{1, 0, 0})

	retried, results, err := f.service.Process(ctx, 7, "dragons", nil)
	require.NoError(t, err)
	assert.Equal(t, rec.Id, retried.Id)
	assert.Len(t, results, 1)
}

func TestRefreshStale(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.addBook(t, "9780000000011", "A", []float32{1, 0, 0})

	// Never searched yet, therefore stale
	rec, err := f.service.CreateOrUpdate(ctx, 7, "dragons", nil)
	require.NoError(t, err)
	assert.Zero(t, rec.FoundBooksCount)

	refreshed, err := f.service.RefreshStale(ctx, time.Hour, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed)

	_, results, err := f.service.ResultsFor(ctx, rec.Id)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// A freshly searched recommendation is left alone
	refreshed, err = f.service.RefreshStale(ctx, time.Hour, 0)
	require.NoError(t, err)
	assert.Zero(t, refreshed)
}

func TestSubmitProcessesAsynchronously(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()

	f.addBook(t, "9780000000011", "A", []float32{1, 0, 0})

	require.NoError(t, f.service.Submit(7, "dragons", nil))

	hash := core.HashText(core.NormalizeText("dragons"))
	assert.Eventually(t, func() bool {
		rec, err := f.store.Recommendations.GetByUserAndHash(ctx, 7, hash)
		return err == nil && rec.FoundBooksCount == 1
	}, 5*time.Second, 10*time.Millisecond)
}

func TestResultsForMissing(t *testing.T) {
	f := setupService(t)

	_, _, err := f.service.ResultsFor(context.Background(), core.ID(12345))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewServiceValidation(t *testing.T) {
	f := setupService(t)

	embedder, err := ai.NewBatchEmbedder(mock.NewMockEmbedder(), ai.DefaultConfig())
	require.NoError(t, err)
	searcher, err := search.NewSearcher(f.store.Ebooks, f.index, embedder)
	require.NoError(t, err)

	_, err = NewService(nil, f.store.Tags, f.store.Embeddings, searcher, embedder)
	assert.ErrorIs(t, err, ErrRecommendationRepositoryRequired)

	_, err = NewService(f.store.Recommendations, nil, f.store.Embeddings, searcher, embedder)
	assert.ErrorIs(t, err, ErrTagRepositoryRequired)

	_, err = NewService(f.store.Recommendations, f.store.Tags, nil, searcher, embedder)
	assert.ErrorIs(t, err, ErrEmbeddingRepositoryRequired)

	_, err = NewService(f.store.Recommendations, f.store.Tags, f.store.Embeddings, nil, embedder)
	assert.ErrorIs(t, err, ErrSearcherRequired)

	_, err = NewService(f.store.Recommendations, f.store.Tags, f.store.Embeddings, searcher, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
