package indexsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mfederowicz/bookrec/ai"
	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
)

// Feeder computes embeddings for catalog records that don't have one
// yet and writes them into the embedding store as unsynced records, so
// the next Engine pass delivers them into the index.
type Feeder struct {
	catalog  storage.EbookRepository
	store    storage.EmbeddingRepository
	embedder *ai.BatchEmbedder
	logger   *slog.Logger
}

// FeedResult summarizes one feeder pass.
type FeedResult struct {
	Total    int
	Embedded int
	Errors   int
}

// NewFeeder creates a feeder.
func NewFeeder(catalog storage.EbookRepository, store storage.EmbeddingRepository, embedder *ai.BatchEmbedder) (*Feeder, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	return &Feeder{
		catalog:  catalog,
		store:    store,
		embedder: embedder,
		logger:   slog.Default().With("component", "embedding-feeder"),
	}, nil
}

// Run embeds every catalog record that lacks an embedding, in batches
// capped by the provider limit. A provider failure aborts the pass
// (records it didn't reach stay pending and a later pass resumes);
// per-record store failures are counted and skipped.
func (f *Feeder) Run(ctx context.Context) (*FeedResult, error) {
	result := &FeedResult{}

	total, err := f.catalog.CountPendingEmbedding(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count pending ebooks: %w", err)
	}

	result.Total = total
	if result.Total == 0 {
		return result, nil
	}

	// A record whose store write failed stays pending; tracking it lets
	// each page fetch past it instead of re-embedding it in a loop.
	failed := make(map[string]struct{})

	batchSize := f.embedder.BatchLimit()
	processed := 0
	for processed < result.Total {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		page, err := f.catalog.FindPendingEmbedding(ctx, batchSize+len(failed))
		if err != nil {
			return result, fmt.Errorf("failed to query pending ebooks: %w", err)
		}

		batch := make([]*core.Ebook, 0, batchSize)
		for _, ebook := range page {
			if _, seen := failed[ebook.ISBN]; seen {
				continue
			}
			batch = append(batch, ebook)
			if len(batch) == batchSize {
				break
			}
		}
		if len(batch) == 0 {
			break
		}

		texts := make([]string, len(batch))
		for j, ebook := range batch {
			texts[j] = EmbeddingText(ebook)
		}

		// No inline retry: a paid provider call is never silently
		// repeated, the next feeder pass picks up where this one stopped.
		vectors, err := f.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return result, fmt.Errorf("embedding batch failed: %w", err)
		}

		for j, ebook := range batch {
			if err := f.storeEmbedding(ctx, ebook, vectors[j]); err != nil {
				f.logger.Error("failed to store embedding", "isbn", ebook.ISBN, "err", err)
				result.Errors++
				failed[ebook.ISBN] = struct{}{}
				continue
			}
			result.Embedded++
		}
		processed += len(batch)
	}

	return result, nil
}

// storeEmbedding writes the embedding record and flips the catalog flag.
func (f *Feeder) storeEmbedding(ctx context.Context, ebook *core.Ebook, vector []float32) error {
	record := &core.EmbeddingRecord{
		Key:           ebook.ISBN,
		Vector:        vector,
		Title:         ebook.Title,
		Author:        ebook.Author,
		Tags:          ebook.Tags,
		Description:   ebook.Description,
		SyncedToIndex: false,
	}
	if err := f.store.Put(ctx, record); err != nil {
		return err
	}

	ebook.HasEmbedding = true
	_, err := f.catalog.UpdateEbooks(ctx, ebook)
	return err
}

// EmbeddingText composes the text that represents an ebook to the
// embedding model: title, author, tags and description joined into one
// document.
func EmbeddingText(ebook *core.Ebook) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{ebook.Title, ebook.Author, ebook.Tags, ebook.Description} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}
	return strings.Join(parts, ". ")
}
