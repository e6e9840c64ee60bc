package vectorstore

import "context"

// Point is one entry in a collection: a fixed-dimension vector plus a
// flat payload carried back verbatim by searches.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Hit is one search result, ordered by descending similarity score.
type Hit struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionInfo describes an existing collection.
type CollectionInfo struct {
	Name        string
	Dimension   int
	PointsCount int
}

// Filter restricts a search to points whose payload matches every entry.
// A nil or empty filter matches all points.
type Filter map[string]any

// Index is the external vector index the sync engine delivers into and
// the search service queries. Implementations must be thread-safe.
type Index interface {
	// EnsureCollection creates the collection if it doesn't exist.
	// Idempotent: an existing collection (including one created
	// concurrently by another process) is success, not an error.
	EnsureCollection(ctx context.Context, name string, dimension int) error

	// CollectionInfo returns collection metadata, or nil (no error)
	// when the collection doesn't exist.
	CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// UpsertBatch inserts or overwrites points by id. From the caller's
	// perspective the batch is all-or-nothing: on any failure the whole
	// batch must be retried, which is safe because upsert is idempotent.
	UpsertBatch(ctx context.Context, name string, points []Point) error

	// Search returns at most limit hits ordered by descending score.
	// A missing collection yields an empty result, not an error.
	Search(ctx context.Context, name string, vector []float32, limit int, filter Filter) ([]Hit, error)

	// DeletePoint removes a point by id. Removing an absent point is
	// not an error.
	DeletePoint(ctx context.Context, name string, id string) error

	// DeleteCollection removes a collection. Removing an absent
	// collection is not an error.
	DeleteCollection(ctx context.Context, name string) error
}
