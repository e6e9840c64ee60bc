package vectorstore

import "errors"

var (
	// ErrUnavailable wraps transport, timeout and server-side failures.
	// Callers treat it as transient and retry at the batch level.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrInvalidDimension indicates a non-positive or mismatched
	// collection dimension.
	ErrInvalidDimension = errors.New("invalid vector dimension")
)
