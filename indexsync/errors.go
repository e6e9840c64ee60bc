package indexsync

import "errors"

var (
	// ErrStoreRequired is returned when an embedding repository is not provided.
	ErrStoreRequired = errors.New("embedding repository required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when a batch embedder is not provided.
	ErrEmbedderRequired = errors.New("batch embedder required")

	// ErrCatalogRequired is returned when an ebook repository is not provided.
	ErrCatalogRequired = errors.New("ebook repository required")
)
