package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// BatchEmbedder wraps an Embedder with the input validation, batch cap,
// timeout and output checks the sync and search layers rely on.
//
// A batch call either fully succeeds or fully fails; output vectors are
// positionally aligned to the input texts.
type BatchEmbedder struct {
	inner      Embedder
	dimension  int
	batchLimit int
	timeout    time.Duration
}

// NewBatchEmbedder wraps the given embedder using limits from cfg.
func NewBatchEmbedder(inner Embedder, cfg *Config) (*BatchEmbedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &BatchEmbedder{
		inner:      inner,
		dimension:  cfg.Dimension,
		batchLimit: cfg.BatchLimit,
		timeout:    cfg.Timeout,
	}, nil
}

// Dimension returns the configured output vector size.
func (b *BatchEmbedder) Dimension() int {
	return b.dimension
}

// BatchLimit returns the provider's hard cap on texts per batch.
func (b *BatchEmbedder) BatchLimit() int {
	return b.batchLimit
}

// EmbedText embeds a single text with validation and timeout.
func (b *BatchEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	vector, err := b.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if len(vector) != b.dimension {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, b.dimension, len(vector))
	}
	return vector, nil
}

// EmbedBatch embeds up to BatchLimit texts. The returned vectors are
// aligned to the inputs: vectors[i] embeds texts[i]. Oversized batches
// and empty texts are rejected before any network call, so a validation
// failure never costs a provider request.
func (b *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > b.batchLimit {
		return nil, fmt.Errorf("%w: %d texts, limit %d", ErrBatchTooLarge, len(texts), b.batchLimit)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: index %d", ErrEmptyText, i)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	vectors, err := b.inner.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(texts), len(vectors))
	}
	for i, vector := range vectors {
		if len(vector) != b.dimension {
			return nil, fmt.Errorf("%w: index %d: expected %d, got %d",
				ErrDimensionMismatch, i, b.dimension, len(vector))
		}
	}
	return vectors, nil
}
