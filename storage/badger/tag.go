package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/mfederowicz/bookrec/core"
	"github.com/mfederowicz/bookrec/storage"
)

// TagRepository implements storage.TagRepository for BadgerDB.
type TagRepository struct {
	backend *Backend
}

var _ storage.TagRepository = (*TagRepository)(nil)

// NewTagRepository creates a new TagRepository.
func NewTagRepository(backend *Backend) (*TagRepository, error) {
	return &TagRepository{
		backend: backend,
	}, nil
}

// Close releases resources. TagRepository has no resources to release.
func (r *TagRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *TagRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// GetOrCreate finds or creates the tag for the given name. The slug is
// the unique constraint, so names differing only in case or punctuation
// converge on one row; no duplicate-key error needs swallowing.
func (r *TagRepository) GetOrCreate(ctx context.Context, name string) (*core.Tag, error) {
	slug := core.Slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("%w: %q", core.ErrEmptyTagName, name)
	}

	var tag *core.Tag

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		slugKey := makeTagSlugKey(slug)

		item, err := tx.Get(slugKey)
		if err == nil {
			var id core.ID
			if err := item.Value(func(val []byte) error {
				id = unmarshalID(val)
				return nil
			}); err != nil {
				return err
			}
			tag, err = readTag(tx, makeTagKey(id))
			return err
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		tag = &core.Tag{
			Id:         core.IDFromContent(slug),
			Name:       name,
			Slug:       slug,
			InsertedAt: storeNow(),
		}

		if err := tx.Set(makeTagKey(tag.Id), storage.MarshalTag(tag)); err != nil {
			return err
		}
		if err := tx.Set(slugKey, marshalID(tag.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, storage.ErrNotFound
	}
	return tag, nil
}

// Get retrieves a tag by ID.
func (r *TagRepository) Get(ctx context.Context, id core.ID) (*core.Tag, error) {
	var tag *core.Tag

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		tag, err = readTag(tx, makeTagKey(id))
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, storage.ErrNotFound
	}
	return tag, nil
}

// GetMany retrieves multiple tags by their IDs.
// Missing tags are silently dropped.
func (r *TagRepository) GetMany(ctx context.Context, ids ...core.ID) ([]*core.Tag, error) {
	tags := make([]*core.Tag, 0, len(ids))

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			tag, err := readTag(tx, makeTagKey(id))
			if err != nil {
				return err
			}
			if tag != nil {
				tags = append(tags, tag)
			}
		}
		return nil
	}, false)

	return tags, err
}

// readTag reads and unmarshals a tag within a transaction.
// Returns nil (no error) if the key doesn't exist.
func readTag(tx *badger.Txn, key []byte) (*core.Tag, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var tag *core.Tag
	err = item.Value(func(val []byte) error {
		var err error
		tag, err = storage.UnmarshalTag(val)
		return err
	})
	return tag, err
}
