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


package badger

import "github.com/mfederowicz/bookrec/storage"

// MemoryStore bundles in-memory repositories for testing.
type MemoryStore struct {
	Backend         *Backend
	Ebooks          storage.EbookRepository
	Embeddings      storage.EmbeddingRepository
	Recommendations storage.RecommendationRepository
	Tags            storage.TagRepository
}

// NewMemoryStore creates an in-memory backend with all repositories.
// Caller must Close the store when done.
func NewMemoryStore() (*MemoryStore, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	ebooks, err := NewEbookRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	embeddings, err := NewEmbeddingRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	recommendations, err := NewRecommendationRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}
	tags, err := NewTagRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	return &MemoryStore{
		Backend:         backend,
		Ebooks:          ebooks,
		Embeddings:      embeddings,
		Recommendations: recommendations,
		Tags:            tags,
	}, nil
}

// Close closes all repositories and the backend.
func (s *MemoryStore) Close() error {
	s.Ebooks.Close()
	s.Embeddings.Close()
	s.Recommendations.Close()
	s.Tags.Close()
	return s.Backend.Close()
}
