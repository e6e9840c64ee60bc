package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mfederowicz/bookrec/ai"
	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
	"github.com/mfederowicz/bookrec/vectorstore"
)

// DefaultCollection is the index collection searched when none is configured.
const DefaultCollection = "ebooks"

// payloadISBNKey is the payload field that links an index point back to
// its catalog record.
const payloadISBNKey = "isbn"

// Searcher runs semantic similarity searches over the ebook catalog.
type Searcher struct {
	catalog    storage.EbookRepository
	index      vectorstore.Index
	embedder   *ai.BatchEmbedder
	collection string
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithCollection sets the index collection to search.
// Default is DefaultCollection.
func WithCollection(name string) Option {
	return func(s *Searcher) error {
		if name != "" {
			s.collection = name
		}
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	catalog storage.EbookRepository,
	index vectorstore.Index,
	embedder *ai.BatchEmbedder,
	opts ...Option,
) (*Searcher, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		catalog:    catalog,
		index:      index,
		embedder:   embedder,
		collection: DefaultCollection,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches for catalog books similar to the query.
// Returns up to maxHits results, ranked by similarity score descending.
// The query is embedded as written; it is never normalized, since casing
// and punctuation carry meaning for the embedding model.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.RankedHit, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, nil)
}

// FindSimilarWithMonitor searches for catalog books similar to the query
// with monitoring. The monitor receives callbacks at each stage of the
// search process.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, maxHits int, monitor SearchMonitor) ([]*core.RankedHit, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	monitor.Start(query)

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterEmbedding(len(vector))

	return s.findSimilarVector(ctx, vector, maxHits, monitor)
}

// FindSimilarVector searches with an already computed query vector,
// bypassing the embedding provider. Used when the caller holds a cached
// vector for the query text.
func (s *Searcher) FindSimilarVector(ctx context.Context, vector []float32, maxHits int) ([]*core.RankedHit, error) {
	return s.findSimilarVector(ctx, vector, maxHits, &noopMonitor{})
}

func (s *Searcher) findSimilarVector(ctx context.Context, vector []float32, maxHits int, monitor SearchMonitor) ([]*core.RankedHit, error) {
	if maxHits <= 0 {
		maxHits = 10
	}

	found, err := s.index.Search(ctx, s.collection, vector, maxHits, nil)
	if err != nil {
		s.logger.Error("error querying vector index", "collection", s.collection, "err", err)
		return nil, fmt.Errorf("index search failed: %w", err)
	}
	monitor.AfterIndexSearch(len(found))

	// The index lags the catalog in both directions: a point may carry a
	// stale payload, or its book may have been removed after the last
	// sync. Such hits are dropped, never errors.
	hits := make([]*core.RankedHit, 0, len(found))
	for _, hit := range found {
		isbn, ok := hit.Payload[payloadISBNKey].(string)
		if !ok || isbn == "" {
			s.logger.Warn("index hit has no catalog key, skipping", "pointID", hit.ID)
			monitor.SkippedHit(hit.ID, "missing catalog key")
			continue
		}

		ebook, err := s.catalog.FindByISBN(ctx, isbn)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("index hit not in catalog, skipping", "isbn", isbn)
				monitor.SkippedHit(hit.ID, "not in catalog")
				continue
			}
			s.logger.Error("error resolving hit to catalog", "isbn", isbn, "err", err)
			return nil, err
		}

		hits = append(hits, &core.RankedHit{
			Ebook: ebook,
			Score: hit.Score,
		})
	}

	monitor.Finish(hits)
	return hits, nil
}
