package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
)

// RecommendationRepository implements storage.RecommendationRepository
// for BadgerDB.
//
// Recommendation IDs are content-derived from (UserID, TextHash), which
// makes the (user, hash) uniqueness constraint structural: equivalent
// submissions map to one row.
type RecommendationRepository struct {
	backend *Backend
}

var _ storage.RecommendationRepository = (*RecommendationRepository)(nil)

// NewRecommendationRepository creates a new RecommendationRepository.
func NewRecommendationRepository(backend *Backend) (*RecommendationRepository, error) {
	return &RecommendationRepository{
		backend: backend,
	}, nil
}

// Close releases resources. RecommendationRepository has no resources to release.
func (r *RecommendationRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *RecommendationRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// RecommendationID derives the content-based ID for a (user, hash) pair.
func RecommendationID(userID uint64, hash string) core.ID {
	return core.IDFromContent(fmt.Sprintf("%d:%s", userID, hash))
}

// Get retrieves a recommendation by ID.
func (r *RecommendationRepository) Get(ctx context.Context, id core.ID) (*core.Recommendation, error) {
	var rec *core.Recommendation

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		rec, err = readRecommendation(tx, makeRecommendationKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// GetByUserAndHash retrieves the unique recommendation for a (user, hash) pair.
func (r *RecommendationRepository) GetByUserAndHash(ctx context.Context, userID uint64, hash string) (*core.Recommendation, error) {
	var rec *core.Recommendation

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeRecUserHashKey(userID, hash))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}

		var id core.ID
		if err := item.Value(func(val []byte) error {
			id = unmarshalID(val)
			return nil
		}); err != nil {
			return err
		}

		rec, err = readRecommendation(tx, makeRecommendationKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, storage.ErrNotFound
	}
	return rec, nil
}

// Put inserts or updates a recommendation.
func (r *RecommendationRepository) Put(ctx context.Context, rec *core.Recommendation) (*core.Recommendation, error) {
	if rec.Id == 0 {
		rec.Id = RecommendationID(rec.UserID, rec.TextHash)
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		old, err := readRecommendation(tx, makeRecommendationKey(rec.Id))
		if err != nil {
			return err
		}

		now := storeNow()
		if old == nil {
			rec.InsertedAt = now
		} else {
			rec.InsertedAt = old.InsertedAt
		}
		rec.UpdatedAt = now

		if err := tx.Set(makeRecommendationKey(rec.Id), storage.MarshalRecommendation(rec)); err != nil {
			return err
		}

		// (user, hash) uniqueness index
		if err := tx.Set(makeRecUserHashKey(rec.UserID, rec.TextHash), marshalID(rec.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return rec, err
}

// ReplaceResults atomically replaces all results of a recommendation.
func (r *RecommendationRepository) ReplaceResults(ctx context.Context, recID core.ID, results []*core.RecommendationResult) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		// Collect existing result keys, then delete outside the iterator.
		var stale [][]byte

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecResultPrefix(recID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			stale = append(stale, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		for _, key := range stale {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}

		for _, result := range results {
			result.RecommendationID = recID
			if err := tx.Set(makeRecResultKey(recID, result.ISBN), storage.MarshalRecommendationResult(result)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ResultsFor returns the results of a recommendation ordered by rank.
func (r *RecommendationRepository) ResultsFor(ctx context.Context, recID core.ID) ([]*core.RecommendationResult, error) {
	results := []*core.RecommendationResult{}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecResultPrefix(recID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var result *core.RecommendationResult
			err := iter.Item().Value(func(val []byte) error {
				var err error
				result, err = storage.UnmarshalRecommendationResult(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Rank < results[j].Rank
	})
	return results, nil
}

// FindStale returns up to limit recommendations with no results or a
// last search older than the cutoff, in ascending ID order.
func (r *RecommendationRepository) FindStale(ctx context.Context, cutoff time.Time, limit int) ([]*core.Recommendation, error) {
	var recs []*core.Recommendation

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(recs) >= limit {
				break
			}

			var rec *core.Recommendation
			err := iter.Item().Value(func(val []byte) error {
				var err error
				rec, err = storage.UnmarshalRecommendation(val)
				return err
			})
			if err != nil {
				return err
			}

			if rec.FoundBooksCount == 0 || rec.LastSearchAt.Before(cutoff) {
				recs = append(recs, rec)
			}
		}
		return nil
	}, false)

	return recs, err
}

// readRecommendation reads and unmarshals a recommendation within a transaction.
// Returns nil (no error) if the key doesn't exist.
func readRecommendation(tx *badger.Txn, key []byte) (*core.Recommendation, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var rec *core.Recommendation
	err = item.Value(func(val []byte) error {
		var err error
		rec, err = storage.UnmarshalRecommendation(val)
		return err
	})
	return rec, err
}
