package storage

import (
	"context"
	"time"

	"github.com/mfederowicz/bookrec/core"
)

// Repository provides common operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the repository and releases resources.
	Close() error
}

// EbookRepository provides operations for the authoritative book catalog.
type EbookRepository interface {
	Repository

	// AddEbooks adds one or more catalog records.
	// Returns ErrDuplicateKey if an ISBN already exists.
	AddEbooks(ctx context.Context, ebooks ...*core.Ebook) ([]*core.Ebook, error)

	// UpdateEbooks updates existing catalog records.
	// The ISBN is immutable; updates keyed by it.
	// Returns ErrNotFound if any record doesn't exist.
	UpdateEbooks(ctx context.Context, ebooks ...*core.Ebook) ([]*core.Ebook, error)

	// FindByISBN retrieves a catalog record by its external key.
	// Returns ErrNotFound if no such record exists.
	FindByISBN(ctx context.Context, isbn string) (*core.Ebook, error)

	// FindPendingEmbedding returns up to limit ebooks that have no
	// embedding yet, in ascending ISBN order.
	FindPendingEmbedding(ctx context.Context, limit int) ([]*core.Ebook, error)

	// CountPendingEmbedding returns the number of ebooks with no embedding.
	CountPendingEmbedding(ctx context.Context) (int, error)
}

// EmbeddingRepository is the local embedding store. It tracks, per
// record, whether the vector has been delivered to the external index
// and which point id it was delivered under.
type EmbeddingRepository interface {
	Repository

	// Get retrieves an embedding record by key.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, key string) (*core.EmbeddingRecord, error)

	// Put inserts or updates an embedding record. A record whose vector
	// changed must be written with SyncedToIndex=false so the sync
	// engine picks it up again. Timestamps are populated automatically.
	Put(ctx context.Context, record *core.EmbeddingRecord) error

	// FindUnsynced returns up to limit records with SyncedToIndex=false
	// (all of them when limit <= 0), ordered by ascending creation time
	// so repeated sync passes make monotonic progress. The read is a
	// snapshot: concurrent writers do not affect an in-flight call.
	FindUnsynced(ctx context.Context, limit int) ([]*core.EmbeddingRecord, error)

	// CountUnsynced returns the number of records with SyncedToIndex=false.
	CountUnsynced(ctx context.Context) (int, error)

	// EnsurePointID returns the record's idempotency token, minting and
	// persisting a new one first if the record has none. The mint is a
	// per-record compare-and-set: two concurrent calls for the same
	// record agree on one token.
	EnsurePointID(ctx context.Context, key string) (string, error)

	// MarkSynced flips SyncedToIndex=true for every key in tokens, in a
	// single transaction. Each value is the point id the key was upserted
	// under; the store asserts it against the record's stored PointID and
	// fails the whole transaction with ErrPointIDMismatch on any
	// disagreement. Only valid immediately after a confirmed index upsert
	// of every key in the set.
	MarkSynced(ctx context.Context, tokens map[string]string) error

	// ResetSynced flips every record back to SyncedToIndex=false in one
	// transaction, forcing a full index rebuild. Point ids are kept so
	// the rebuild re-upserts the same points. Returns the number of
	// records reset.
	ResetSynced(ctx context.Context) (int, error)

	// CachedQueryVector returns the cached embedding for a
	// normalized-text hash, or ErrNotFound. Query embeddings form a
	// separate pool deduplicated by hash; they never enter the sync queue.
	CachedQueryVector(ctx context.Context, hash string) ([]float32, error)

	// CacheQueryVector stores the embedding for a normalized-text hash.
	CacheQueryVector(ctx context.Context, hash string, vector []float32) error
}

// RecommendationRepository stores recommendations and their ranked results.
type RecommendationRepository interface {
	Repository

	// Get retrieves a recommendation by ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id core.ID) (*core.Recommendation, error)

	// GetByUserAndHash retrieves the unique recommendation for a
	// (user, normalized-text hash) pair.
	// Returns ErrNotFound if it doesn't exist.
	GetByUserAndHash(ctx context.Context, userID uint64, hash string) (*core.Recommendation, error)

	// Put inserts or updates a recommendation. The ID is derived from
	// (UserID, TextHash), so writing an equivalent recommendation twice
	// updates one row. Timestamps are populated automatically.
	Put(ctx context.Context, rec *core.Recommendation) (*core.Recommendation, error)

	// ReplaceResults atomically replaces all results of a recommendation
	// with the given set (delete-all-then-insert in one transaction).
	ReplaceResults(ctx context.Context, recID core.ID, results []*core.RecommendationResult) error

	// ResultsFor returns the results of a recommendation ordered by rank.
	// Returns an empty slice when the recommendation has no results.
	ResultsFor(ctx context.Context, recID core.ID) ([]*core.RecommendationResult, error)

	// FindStale returns up to limit recommendations that either have no
	// results or whose LastSearchAt is before the cutoff.
	FindStale(ctx context.Context, cutoff time.Time, limit int) ([]*core.Recommendation, error)
}

// TagRepository stores tags deduplicated by case-insensitive name and slug.
type TagRepository interface {
	Repository

	// GetOrCreate finds or creates the tag for the given name. The slug
	// derived from the name is the unique constraint, so concurrent
	// creations of equivalent names converge on one tag row.
	GetOrCreate(ctx context.Context, name string) (*core.Tag, error)

	// Get retrieves a tag by ID.
	// Returns ErrNotFound if the tag doesn't exist.
	Get(ctx context.Context, id core.ID) (*core.Tag, error)

	// GetMany retrieves multiple tags by their IDs.
	// Returns only the tags that exist (no error for missing tags).
	GetMany(ctx context.Context, ids ...core.ID) ([]*core.Tag, error)
}
