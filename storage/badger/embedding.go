package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
)

// EmbeddingRepository implements storage.EmbeddingRepository for BadgerDB.
//
// Alongside the primary records it maintains a sync queue index whose
// keys are (insertedAt, recordKey) in BigEndian order, so iterating the
// queue yields unsynced records in ascending creation time.
type EmbeddingRepository struct {
	backend *Backend
}

var _ storage.EmbeddingRepository = (*EmbeddingRepository)(nil)

// NewEmbeddingRepository creates a new EmbeddingRepository.
func NewEmbeddingRepository(backend *Backend) (*EmbeddingRepository, error) {
	return &EmbeddingRepository{
		backend: backend,
	}, nil
}

// Close releases resources. EmbeddingRepository has no resources to release.
func (r *EmbeddingRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EmbeddingRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// Get retrieves an embedding record by key.
func (r *EmbeddingRepository) Get(ctx context.Context, key string) (*core.EmbeddingRecord, error) {
	var record *core.EmbeddingRecord

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = readEmbeddingRecord(tx, makeEmbeddingKey(key))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, storage.ErrNotFound
	}
	return record, nil
}

// Put inserts or updates an embedding record.
func (r *EmbeddingRepository) Put(ctx context.Context, record *core.EmbeddingRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		old, err := readEmbeddingRecord(tx, makeEmbeddingKey(record.Key))
		if err != nil {
			return err
		}

		now := storeNow()
		if old == nil {
			record.InsertedAt = now
		} else {
			record.InsertedAt = old.InsertedAt
			// A kept token means retries re-upsert the same index point
			if record.PointID == "" {
				record.PointID = old.PointID
			}
			if err := tx.Delete(makeSyncQueueKey(old.InsertedAt, old.Key)); err != nil {
				return err
			}
		}
		record.UpdatedAt = now

		if err := tx.Set(makeEmbeddingKey(record.Key), storage.MarshalEmbeddingRecord(record)); err != nil {
			return err
		}

		if !record.SyncedToIndex {
			if err := tx.Set(makeSyncQueueKey(record.InsertedAt, record.Key), []byte(record.Key)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FindUnsynced returns up to limit unsynced records in ascending
// creation time order. Badger transactions read from a snapshot, so
// concurrent writers do not affect an in-flight call.
func (r *EmbeddingRepository) FindUnsynced(ctx context.Context, limit int) ([]*core.EmbeddingRecord, error) {
	var records []*core.EmbeddingRecord

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingSyncQueue + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}

			var key string
			err := iter.Item().Value(func(val []byte) error {
				key = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			record, err := readEmbeddingRecord(tx, makeEmbeddingKey(key))
			if err != nil {
				return err
			}
			if record == nil || record.SyncedToIndex {
				// Stale queue entry, skip
				continue
			}
			records = append(records, record)
		}
		return nil
	}, false)

	return records, err
}

// CountUnsynced returns the number of records waiting for an index upsert.
func (r *EmbeddingRepository) CountUnsynced(ctx context.Context) (int, error) {
	count := 0

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingSyncQueue + ":")
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)

	return count, err
}

// EnsurePointID returns the record's idempotency token, minting one if
// absent. Minting runs in a read-write transaction; Badger aborts
// conflicting transactions on commit, so two concurrent mints for the
// same record cannot both win.
func (r *EmbeddingRepository) EnsurePointID(ctx context.Context, key string) (string, error) {
	var pointID string

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		record, err := readEmbeddingRecord(tx, makeEmbeddingKey(key))
		if err != nil {
			return err
		}
		if record == nil {
			return storage.ErrNotFound
		}

		if record.PointID != "" {
			pointID = record.PointID
			return nil
		}

		record.PointID = uuid.NewString()
		record.UpdatedAt = storeNow()

		if err := tx.Set(makeEmbeddingKey(key), storage.MarshalEmbeddingRecord(record)); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		pointID = record.PointID
		return nil
	}, true)

	return pointID, err
}

// MarkSynced flips SyncedToIndex=true for every key in tokens, in one
// transaction. Each key's stored point id must match the supplied token;
// a mismatch fails the whole transaction with ErrPointIDMismatch so a
// stale sync pass cannot confirm a point it did not upsert.
func (r *EmbeddingRepository) MarkSynced(ctx context.Context, tokens map[string]string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for key, pointID := range tokens {
			record, err := readEmbeddingRecord(tx, makeEmbeddingKey(key))
			if err != nil {
				return err
			}
			if record == nil {
				return storage.ErrNotFound
			}
			if record.PointID != pointID {
				return fmt.Errorf("%w: %s stored %s, marked %s", storage.ErrPointIDMismatch, key, record.PointID, pointID)
			}

			record.SyncedToIndex = true
			record.UpdatedAt = storeNow()

			if err := tx.Set(makeEmbeddingKey(key), storage.MarshalEmbeddingRecord(record)); err != nil {
				return err
			}
			if err := tx.Delete(makeSyncQueueKey(record.InsertedAt, record.Key)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ResetSynced flips every record back to unsynced in one transaction,
// keeping point ids so a full rebuild re-upserts the same points.
func (r *EmbeddingRepository) ResetSynced(ctx context.Context) (int, error) {
	count := 0

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		// Collect first: mutating keys under an open iterator on the
		// same prefix is not safe in a Badger transaction.
		var records []*core.EmbeddingRecord

		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(embeddingPrefix + ":")
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.EmbeddingRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalEmbeddingRecord(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			records = append(records, record)
		}
		iter.Close()

		for _, record := range records {
			count++
			if !record.SyncedToIndex {
				continue
			}

			record.SyncedToIndex = false
			record.UpdatedAt = storeNow()

			if err := tx.Set(makeEmbeddingKey(record.Key), storage.MarshalEmbeddingRecord(record)); err != nil {
				return err
			}
			if err := tx.Set(makeSyncQueueKey(record.InsertedAt, record.Key), []byte(record.Key)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CachedQueryVector returns the cached embedding for a query hash.
func (r *EmbeddingRepository) CachedQueryVector(ctx context.Context, hash string) ([]float32, error) {
	var vector []float32

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeQueryVectorKey(hash))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			vector, err = storage.UnmarshalVector(val)
			return err
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// CacheQueryVector stores the embedding for a query hash.
func (r *EmbeddingRepository) CacheQueryVector(ctx context.Context, hash string, vector []float32) error {
	value := storage.MarshalVector(vector)
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeQueryVectorKey(hash), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readEmbeddingRecord reads and unmarshals a record within a transaction.
// Returns nil (no error) if the key doesn't exist.
func readEmbeddingRecord(tx *badger.Txn, key []byte) (*core.EmbeddingRecord, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.EmbeddingRecord
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalEmbeddingRecord(val)
		return err
	})
	return record, err
}
