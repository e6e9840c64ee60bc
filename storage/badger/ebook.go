package badger

import (
	"context"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
)

// EbookRepository implements storage.EbookRepository for BadgerDB.
type EbookRepository struct {
	backend *Backend
}

var _ storage.EbookRepository = (*EbookRepository)(nil)

// NewEbookRepository creates a new EbookRepository.
func NewEbookRepository(backend *Backend) (*EbookRepository, error) {
	return &EbookRepository{
		backend: backend,
	}, nil
}

// Close releases resources. EbookRepository has no resources to release.
func (r *EbookRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *EbookRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddEbooks adds one or more catalog records.
func (r *EbookRepository) AddEbooks(ctx context.Context, ebooks ...*core.Ebook) ([]*core.Ebook, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, ebook := range ebooks {
			key := makeEbookKey(ebook.ISBN)

			// The ISBN is the unique external key
			if _, err := tx.Get(key); err == nil {
				return storage.ErrDuplicateKey
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			ebook.InsertedAt = storeNow()
			ebook.UpdatedAt = ebook.InsertedAt

			if err := tx.Set(key, storage.MarshalEbook(ebook)); err != nil {
				return err
			}

			// Index books that still need an embedding
			if !ebook.HasEmbedding {
				if err := tx.Set(makeEbookPendingKey(ebook.ISBN), []byte(ebook.ISBN)); err != nil {
					return err
				}
			}
		}
		return tx.Commit()
	}, true)

	return ebooks, err
}

// UpdateEbooks updates existing catalog records, keyed by ISBN.
func (r *EbookRepository) UpdateEbooks(ctx context.Context, ebooks ...*core.Ebook) ([]*core.Ebook, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, ebook := range ebooks {
			key := makeEbookKey(ebook.ISBN)

			old, err := readEbook(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}

			ebook.InsertedAt = old.InsertedAt
			ebook.UpdatedAt = storeNow()

			if err := tx.Set(key, storage.MarshalEbook(ebook)); err != nil {
				return err
			}

			// Keep the pending-embedding index in step with the flag
			if old.HasEmbedding != ebook.HasEmbedding {
				pendingKey := makeEbookPendingKey(ebook.ISBN)
				if ebook.HasEmbedding {
					if err := tx.Delete(pendingKey); err != nil {
						return err
					}
				} else {
					if err := tx.Set(pendingKey, []byte(ebook.ISBN)); err != nil {
						return err
					}
				}
			}
		}
		return tx.Commit()
	}, true)

	return ebooks, err
}

// FindByISBN retrieves a catalog record by its external key.
func (r *EbookRepository) FindByISBN(ctx context.Context, isbn string) (*core.Ebook, error) {
	var ebook *core.Ebook

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		ebook, err = readEbook(tx, makeEbookKey(isbn))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if ebook == nil {
		return nil, storage.ErrNotFound
	}
	return ebook, nil
}

// FindPendingEmbedding returns up to limit ebooks without an embedding,
// in ascending ISBN order.
func (r *EbookRepository) FindPendingEmbedding(ctx context.Context, limit int) ([]*core.Ebook, error) {
	var ebooks []*core.Ebook

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ebookPendingPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if limit > 0 && len(ebooks) >= limit {
				break
			}

			var isbn string
			err := iter.Item().Value(func(val []byte) error {
				isbn = string(val)
				return nil
			})
			if err != nil {
				return err
			}

			ebook, err := readEbook(tx, makeEbookKey(isbn))
			if err != nil {
				return err
			}
			if ebook == nil {
				// Stale index entry, skip
				continue
			}
			ebooks = append(ebooks, ebook)
		}
		return nil
	}, false)

	return ebooks, err
}

// CountPendingEmbedding returns the number of ebooks without an embedding.
func (r *EbookRepository) CountPendingEmbedding(ctx context.Context) (int, error) {
	count := 0

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(ebookPendingPrefix + ":")
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

// readEbook reads and unmarshals an ebook within a transaction.
// Returns nil (no error) if the key doesn't exist.
func readEbook(tx *badger.Txn, key []byte) (*core.Ebook, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var ebook *core.Ebook
	err = item.Value(func(val []byte) error {
		var err error
		ebook, err = storage.UnmarshalEbook(val)
		return err
	})
	return ebook, err
}
