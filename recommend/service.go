package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/mfederowicz/bookrec/ai"
	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/search"
	"github.com/mfederowicz/bookrec/storage"
)

const (
	// DefaultTopK is the number of results stored per recommendation.
	DefaultTopK = 10

	// DefaultStaleWindow marks a recommendation stale when its last
	// search is older than this.
	DefaultStaleWindow = 7 * 24 * time.Hour
)

// Service creates recommendations and fills them with search results.
// It manages a worker pool for asynchronous request processing.
type Service struct {
	recommendations storage.RecommendationRepository
	tags            storage.TagRepository
	embeddings      storage.EmbeddingRepository
	searcher        *search.Searcher
	embedder        *ai.BatchEmbedder
	pool            *ants.Pool
	topK            int
	logger          *slog.Logger
}

// Option configures a Service.
type Option func(*Service) error

// WithPoolSize sets the worker pool size for asynchronous submission.
// Default is half the CPU count, minimum 1.
func WithPoolSize(size int) Option {
	return func(s *Service) error {
		if size < 1 {
			size = 1
		}
		if s.pool != nil {
			s.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		s.pool = pool
		return nil
	}
}

// WithTopK sets how many results each search stores.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(s *Service) error {
		if k > 0 {
			s.topK = k
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewService creates a new recommendation service.
func NewService(
	recommendations storage.RecommendationRepository,
	tags storage.TagRepository,
	embeddings storage.EmbeddingRepository,
	searcher *search.Searcher,
	embedder *ai.BatchEmbedder,
	opts ...Option,
) (*Service, error) {
	if recommendations == nil {
		return nil, ErrRecommendationRepositoryRequired
	}
	if tags == nil {
		return nil, ErrTagRepositoryRequired
	}
	if embeddings == nil {
		return nil, ErrEmbeddingRepositoryRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	s := &Service{
		recommendations: recommendations,
		tags:            tags,
		embeddings:      embeddings,
		searcher:        searcher,
		embedder:        embedder,
		pool:            pool,
		topK:            DefaultTopK,
		logger:          slog.Default().With("component", "recommend"),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			s.Release()
			return nil, err
		}
	}

	return s, nil
}

// CreateOrUpdate records a recommendation request for a user. Requests
// are deduplicated by the hash of the normalized text: a repeat of an
// earlier request returns the same recommendation with its tag set
// replaced by the new one. The raw text is kept as most recently
// submitted. Tag IDs that don't name an existing tag are silently
// dropped, as are duplicates.
func (s *Service) CreateOrUpdate(ctx context.Context, userID uint64, text string, tagIDs []core.ID) (*core.Recommendation, error) {
	normalized := core.NormalizeText(text)
	if normalized == "" {
		return nil, ErrEmptyRequest
	}
	hash := core.HashText(normalized)

	tagIDs, err := s.validTagIDs(ctx, tagIDs)
	if err != nil {
		return nil, err
	}

	rec, err := s.recommendations.GetByUserAndHash(ctx, userID, hash)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up recommendation: %w", err)
		}
		rec = &core.Recommendation{
			UserID:   userID,
			Text:     text,
			TextHash: hash,
			TagIDs:   tagIDs,
		}
	} else {
		rec.Text = text
		rec.TagIDs = tagIDs
	}

	rec, err = s.recommendations.Put(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to store recommendation: %w", err)
	}
	return rec, nil
}

// CreateOrUpdateByNames is CreateOrUpdate with tags given by name
// instead of ID, creating tags that don't exist yet. Names that reduce
// to an empty slug are dropped, not errors.
func (s *Service) CreateOrUpdateByNames(ctx context.Context, userID uint64, text string, tagNames []string) (*core.Recommendation, error) {
	tagIDs, err := s.resolveTags(ctx, tagNames)
	if err != nil {
		return nil, err
	}
	return s.CreateOrUpdate(ctx, userID, text, tagIDs)
}

// validTagIDs keeps the IDs that name an existing tag, deduplicated,
// in first-seen order. Unknown IDs are dropped, not errors.
func (s *Service) validTagIDs(ctx context.Context, ids []core.ID) ([]core.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	tags, err := s.tags.GetMany(ctx, ids...)
	if err != nil {
		return nil, fmt.Errorf("failed to look up tags: %w", err)
	}
	exists := make(map[core.ID]bool, len(tags))
	for _, tag := range tags {
		exists[tag.Id] = true
	}

	valid := make([]core.ID, 0, len(ids))
	seen := make(map[core.ID]bool, len(ids))
	for _, id := range ids {
		if !exists[id] || seen[id] {
			continue
		}
		seen[id] = true
		valid = append(valid, id)
	}
	return valid, nil
}

// resolveTags maps tag names to tag IDs, creating tags that don't exist
// yet.
func (s *Service) resolveTags(ctx context.Context, names []string) ([]core.ID, error) {
	ids := make([]core.ID, 0, len(names))
	for _, name := range names {
		tag, err := s.tags.GetOrCreate(ctx, name)
		if err != nil {
			if errors.Is(err, core.ErrEmptyTagName) {
				s.logger.Warn("dropping unusable tag name", "name", name)
				continue
			}
			return nil, fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		ids = append(ids, tag.Id)
	}
	return ids, nil
}

// SearchAndStore runs the similarity search for a recommendation and
// replaces its stored results. The recommendation itself is never
// rolled back on search failure; a later call retries the search.
func (s *Service) SearchAndStore(ctx context.Context, rec *core.Recommendation) ([]*core.RecommendationResult, error) {
	vector, err := s.queryVector(ctx, rec)
	if err != nil {
		return nil, err
	}

	hits, err := s.searcher.FindSimilarVector(ctx, vector, s.topK)
	if err != nil {
		return nil, err
	}

	results := rankHits(rec.Id, hits)
	if err := s.recommendations.ReplaceResults(ctx, rec.Id, results); err != nil {
		return nil, fmt.Errorf("failed to store results: %w", err)
	}

	rec.FoundBooksCount = len(results)
	rec.LastSearchAt = time.Now().UTC()
	if _, err := s.recommendations.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to update recommendation: %w", err)
	}

	return results, nil
}

// queryVector returns the embedding for the recommendation's text,
// reusing a cached vector keyed by the text hash when one exists so a
// repeated request never pays for a second provider call.
func (s *Service) queryVector(ctx context.Context, rec *core.Recommendation) ([]float32, error) {
	cached, err := s.embeddings.CachedQueryVector(ctx, rec.TextHash)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	vector, err := s.embedder.EmbedText(ctx, rec.Text)
	if err != nil {
		return nil, err
	}
	if err := s.embeddings.CacheQueryVector(ctx, rec.TextHash, vector); err != nil {
		s.logger.Warn("failed to cache query vector", "hash", rec.TextHash, "err", err)
	}
	return vector, nil
}

// Process creates or updates the recommendation and runs its search in
// one call.
func (s *Service) Process(ctx context.Context, userID uint64, text string, tagNames []string) (*core.Recommendation, []*core.RecommendationResult, error) {
	rec, err := s.CreateOrUpdateByNames(ctx, userID, text, tagNames)
	if err != nil {
		return nil, nil, err
	}
	results, err := s.SearchAndStore(ctx, rec)
	if err != nil {
		// The request is saved, only the search failed.
		return rec, nil, err
	}
	return rec, results, nil
}

// Submit queues a request for asynchronous processing on the worker
// pool. Errors during processing are logged but do not surface to the
// caller.
func (s *Service) Submit(userID uint64, text string, tagNames []string) error {
	return s.pool.Submit(func() {
		if _, _, err := s.Process(context.Background(), userID, text, tagNames); err != nil {
			s.logger.Error("error processing recommendation request", "userID", userID, "err", err)
		}
	})
}

// ResultsFor returns the stored results of a recommendation, ordered by
// rank.
func (s *Service) ResultsFor(ctx context.Context, recID core.ID) (*core.Recommendation, []*core.RecommendationResult, error) {
	rec, err := s.recommendations.Get(ctx, recID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	results, err := s.recommendations.ResultsFor(ctx, recID)
	if err != nil {
		return nil, nil, err
	}
	return rec, results, nil
}

// RefreshStale re-runs the search for recommendations that found
// nothing or whose last search is older than window. Returns how many
// were refreshed. Individual failures are logged and skipped.
func (s *Service) RefreshStale(ctx context.Context, window time.Duration, limit int) (int, error) {
	if window <= 0 {
		window = DefaultStaleWindow
	}
	cutoff := time.Now().UTC().Add(-window)

	stale, err := s.recommendations.FindStale(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale recommendations: %w", err)
	}

	refreshed := 0
	for _, rec := range stale {
		select {
		case <-ctx.Done():
			return refreshed, ctx.Err()
		default:
		}
		if _, err := s.SearchAndStore(ctx, rec); err != nil {
			s.logger.Error("error refreshing recommendation", "id", rec.Id, "err", err)
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

// Release releases the worker pool.
// The service should not be used after calling Release.
func (s *Service) Release() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// rankHits orders hits by score descending, breaking ties by ISBN
// ascending so equal scores rank deterministically, and assigns ranks
// starting at 1.
func rankHits(recID core.ID, hits []*core.RankedHit) []*core.RecommendationResult {
	sorted := make([]*core.RankedHit, len(hits))
	copy(sorted, hits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Ebook.ISBN < sorted[j].Ebook.ISBN
	})

	results := make([]*core.RecommendationResult, len(sorted))
	for i, hit := range sorted {
		results[i] = &core.RecommendationResult{
			RecommendationID: recID,
			ISBN:             hit.Ebook.ISBN,
			Score:            hit.Score,
			Rank:             i + 1,
		}
	}
	return results
}
