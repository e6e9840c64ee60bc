// Copyright 2025 The bookrec Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package indexsync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
	"github.com/mfederowicz/bookrec/vectorstore"
)

// Config holds configuration for the sync engine.
type Config struct {
	// Collection is the target vector index collection name.
	Collection string

	// Dimension is the fixed vector size of the collection.
	Dimension int

	// BatchSize is the number of records upserted per index call.
	BatchSize int

	// MaxBatches caps the number of batches per run (0 = no cap).
	MaxBatches int

	// ReportInterval is how often to report progress (number of records).
	ReportInterval int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Collection:     "ebooks",
		Dimension:      1536,
		BatchSize:      50,
		ReportInterval: 100,
	}
}

// Result summarizes one sync pass. Errors counts records whose batch
// upsert failed (they stay pending); Skipped counts records dropped for
// consistency problems such as a wrong vector dimension.
type Result struct {
	Total   int
	Synced  int
	Skipped int
	Errors  int
}

// Engine synchronizes the local embedding store into the vector index.
type Engine struct {
	store    storage.EmbeddingRepository
	index    vectorstore.Index
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewEngine creates a sync engine.
// progress: where to write progress output (typically os.Stderr); may be nil.
func NewEngine(store storage.EmbeddingRepository, index vectorstore.Index, config *Config, progress io.Writer) (*Engine, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Engine{
		store:    store,
		index:    index,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "indexsync"),
	}, nil
}

// Run executes one sync pass: every record that is unsynced at the
// start of the pass is batched into the index. A single batch failure
// never aborts the run; the records stay pending for the next pass.
// The run is safely interruptible between batches.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	// Setup-level failure: without the collection nothing can proceed.
	if err := e.index.EnsureCollection(ctx, e.config.Collection, e.config.Dimension); err != nil {
		return result, fmt.Errorf("failed to ensure collection %s: %w", e.config.Collection, err)
	}

	total, err := e.store.CountUnsynced(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count unsynced records: %w", err)
	}

	result.Total = total
	if result.Total == 0 {
		fmt.Fprintf(e.progress, "No unsynced embedding records (0 records)\n")
		return result, nil
	}

	fmt.Fprintf(e.progress, "Starting sync of %d records (batch size: %d)\n",
		result.Total, e.config.BatchSize)

	tracker := NewProgressTracker(e.progress, result.Total, e.config.ReportInterval)
	tracker.Start()

	// Records that failed or were skipped stay unsynced at the head of
	// the queue. Tracking them lets each page fetch past them without
	// ever pulling the whole pending set into memory at once.
	attempted := make(map[string]struct{})

	batches := 0
	processed := 0
	for processed < result.Total {
		// Each batch commit is a consistency boundary; checking the
		// context here leaves a valid, resumable state behind.
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if e.config.MaxBatches > 0 && batches >= e.config.MaxBatches {
			break
		}

		page, err := e.store.FindUnsynced(ctx, e.config.BatchSize+len(attempted))
		if err != nil {
			return result, fmt.Errorf("failed to query unsynced records: %w", err)
		}

		batch := make([]*core.EmbeddingRecord, 0, e.config.BatchSize)
		for _, record := range page {
			if _, seen := attempted[record.Key]; seen {
				continue
			}
			batch = append(batch, record)
			if len(batch) == e.config.BatchSize {
				break
			}
		}
		if len(batch) == 0 {
			break
		}
		batches++

		for _, key := range e.syncBatch(ctx, batch, result) {
			attempted[key] = struct{}{}
		}
		processed += len(batch)
		tracker.Update(result.Synced + result.Skipped + result.Errors)
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(e.progress, "Sync complete. %d synced, %d skipped, %d errors out of %d records in %v\n",
		result.Synced, result.Skipped, result.Errors, result.Total, elapsed.Round(time.Second))

	return result, nil
}

// RunFull resets every record to unsynced in one transaction and then
// runs a normal pass, forcing a full index rebuild. Point ids survive
// the reset, so running this twice yields the same index point count.
func (e *Engine) RunFull(ctx context.Context) (*Result, error) {
	reset, err := e.store.ResetSynced(ctx)
	if err != nil {
		return &Result{}, fmt.Errorf("failed to reset sync flags: %w", err)
	}
	e.logger.Info("reset sync flags for full rebuild", "records", reset)

	return e.Run(ctx)
}

// syncBatch upserts one batch and marks its records synced. Failures
// are counted into result, never returned: the engine moves on to the
// next batch. The returned keys are the records that stayed unsynced.
func (e *Engine) syncBatch(ctx context.Context, batch []*core.EmbeddingRecord, result *Result) []string {
	points := make([]vectorstore.Point, 0, len(batch))
	tokens := make(map[string]string, len(batch))
	pending := make([]string, 0, len(batch))

	for _, record := range batch {
		if err := core.ValidateEmbeddingRecord(record, e.config.Dimension); err != nil {
			// Consistency error: skip the record, keep the batch alive
			e.logger.Warn("skipping invalid embedding record", "key", record.Key, "err", err)
			result.Skipped++
			pending = append(pending, record.Key)
			continue
		}

		// Token before network call: a crash after the upsert but
		// before the flag commit must retry with the same point id.
		pointID, err := e.store.EnsurePointID(ctx, record.Key)
		if err != nil {
			e.logger.Error("failed to ensure point id", "key", record.Key, "err", err)
			result.Errors++
			pending = append(pending, record.Key)
			continue
		}

		points = append(points, vectorstore.Point{
			ID:     pointID,
			Vector: record.Vector,
			Payload: map[string]any{
				"isbn":        record.Key,
				"title":       record.Title,
				"author":      record.Author,
				"tags":        record.Tags,
				"description": record.Description,
			},
		})
		tokens[record.Key] = pointID
	}

	if len(points) == 0 {
		return pending
	}

	if err := e.index.UpsertBatch(ctx, e.config.Collection, points); err != nil {
		// Records stay pending; the persisted tokens make the retry safe
		e.logger.Error("batch upsert failed", "records", len(points), "err", err)
		result.Errors += len(points)
		for key := range tokens {
			pending = append(pending, key)
		}
		return pending
	}

	if err := e.store.MarkSynced(ctx, tokens); err != nil {
		// The upsert landed but the flags didn't; the next pass
		// re-upserts the same point ids, which is harmless.
		e.logger.Error("failed to mark records synced", "records", len(tokens), "err", err)
		result.Errors += len(tokens)
		for key := range tokens {
			pending = append(pending, key)
		}
		return pending
	}

	result.Synced += len(tokens)
	return pending
}
