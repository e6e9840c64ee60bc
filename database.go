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

package bookrec

import (
	"io"
	"log/slog"

	"github.com/mfederowicz/bookrec/ai"
	"github.com/mfederowicz/bookrec/ai/openai"
	"github.com/mfederowicz/bookrec/indexsync"
	"github.com/mfederowicz/bookrec/recommend"
	"github.com/mfederowicz/bookrec/search"
	"github.com/mfederowicz/bookrec/storage"
	"github.com/mfederowicz/bookrec/storage/badger"
	"github.com/mfederowicz/bookrec/vectorstore"
	"github.com/mfederowicz/bookrec/vectorstore/memory"
)

// Database bundles the local store, the embedding provider and the
// vector index behind one handle.
type Database struct {
	backend            *badger.Backend
	ebookRepo          storage.EbookRepository
	embeddingRepo      storage.EmbeddingRepository
	recommendationRepo storage.RecommendationRepository
	tagRepo            storage.TagRepository
	embedder           *ai.BatchEmbedder
	index              vectorstore.Index
	collection         string
	logger             *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig   *ai.Config
	index      vectorstore.Index
	collection string
	inMemory   bool
}

// WithAIConfig sets the embedding provider configuration.
func WithAIConfig(cfg *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		if cfg != nil {
			o.aiConfig = cfg
		}
	}
}

// WithIndex sets the vector index implementation.
// Default is an in-process index, useful for tests and small catalogs.
func WithIndex(index vectorstore.Index) DatabaseOption {
	return func(o *databaseOptions) {
		if index != nil {
			o.index = index
		}
	}
}

// WithCollection sets the index collection name.
func WithCollection(name string) DatabaseOption {
	return func(o *databaseOptions) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithInMemoryStorage keeps the local store in memory instead of on disk.
func WithInMemoryStorage() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig:   ai.DefaultConfig(),
		collection: search.DefaultCollection,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.index == nil {
		options.index = memory.NewIndex()
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	ebookRepo, err := badger.NewEbookRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	embeddingRepo, err := badger.NewEmbeddingRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	recommendationRepo, err := badger.NewRecommendationRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	tagRepo, err := badger.NewTagRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	inner, err := openai.NewEmbedder(options.aiConfig)
	if err != nil {
		backend.Close()
		return nil, err
	}
	embedder, err := ai.NewBatchEmbedder(inner, options.aiConfig)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:            backend,
		ebookRepo:          ebookRepo,
		embeddingRepo:      embeddingRepo,
		recommendationRepo: recommendationRepo,
		tagRepo:            tagRepo,
		embedder:           embedder,
		index:              options.index,
		collection:         options.collection,
		logger:             slog.Default(),
	}, nil
}

func (db *Database) Close() error {
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) EbookRepository() storage.EbookRepository {
	return db.ebookRepo
}

func (db *Database) EmbeddingRepository() storage.EmbeddingRepository {
	return db.embeddingRepo
}

func (db *Database) RecommendationRepository() storage.RecommendationRepository {
	return db.recommendationRepo
}

func (db *Database) TagRepository() storage.TagRepository {
	return db.tagRepo
}

func (db *Database) Embedder() *ai.BatchEmbedder {
	return db.embedder
}

func (db *Database) Index() vectorstore.Index {
	return db.index
}

// NewFeeder builds the embedding feeder for this database.
func (db *Database) NewFeeder() (*indexsync.Feeder, error) {
	return indexsync.NewFeeder(db.ebookRepo, db.embeddingRepo, db.embedder)
}

// NewSyncEngine builds a sync engine writing progress to the given
// writer. A nil config uses defaults.
func (db *Database) NewSyncEngine(config *indexsync.Config, progress io.Writer) (*indexsync.Engine, error) {
	if config == nil {
		config = indexsync.DefaultConfig()
	}
	config.Collection = db.collection
	config.Dimension = db.embedder.Dimension()
	return indexsync.NewEngine(db.embeddingRepo, db.index, config, progress)
}

func (db *Database) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithCollection(db.collection)}, opts...)
	return search.NewSearcher(db.ebookRepo, db.index, db.embedder, opts...)
}

// NewRecommendService builds a recommendation service on top of this
// database's searcher.
func (db *Database) NewRecommendService(opts ...recommend.Option) (*recommend.Service, error) {
	searcher, err := db.NewSearcher()
	if err != nil {
		return nil, err
	}
	return recommend.NewService(db.recommendationRepo, db.tagRepo, db.embeddingRepo, searcher, db.embedder, opts...)
}
