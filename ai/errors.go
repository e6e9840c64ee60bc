package ai

import "errors"

var (
	// ErrProvider wraps transport and provider-side failures. Callers
	// treat it as transient: records stay pending and a later pass retries.
	ErrProvider = errors.New("embedding provider failure")

	// ErrEmptyText indicates an input text is empty after trimming.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrBatchTooLarge indicates a batch exceeds the provider's hard cap.
	// Oversized batches are rejected, never truncated.
	ErrBatchTooLarge = errors.New("batch exceeds provider limit")

	// ErrCountMismatch indicates the provider returned a different number
	// of vectors than texts were submitted.
	ErrCountMismatch = errors.New("embedding count mismatch")

	// ErrDimensionMismatch indicates the provider returned a vector of
	// unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
