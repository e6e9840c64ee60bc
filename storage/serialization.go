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


package storage

import (
	"fmt"

	"github.com/mfederowicz/bookrec/core"
)

// MarshalEbook serializes an Ebook to bytes.
func MarshalEbook(ebook *core.Ebook) []byte {
	buf := make([]byte, core.EbookMUS.Size(*ebook))
	core.EbookMUS.Marshal(*ebook, buf)
	return buf
}

// UnmarshalEbook deserializes an Ebook from bytes.
func UnmarshalEbook(data []byte) (*core.Ebook, error) {
	ebook, _, err := core.EbookMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &ebook, nil
}

// MarshalEmbeddingRecord serializes an EmbeddingRecord to bytes.
func MarshalEmbeddingRecord(record *core.EmbeddingRecord) []byte {
	buf := make([]byte, core.EmbeddingRecordMUS.Size(*record))
	core.EmbeddingRecordMUS.Marshal(*record, buf)
	return buf
}

// UnmarshalEmbeddingRecord deserializes an EmbeddingRecord from bytes.
func UnmarshalEmbeddingRecord(data []byte) (*core.EmbeddingRecord, error) {
	record, _, err := core.EmbeddingRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &record, nil
}

// MarshalRecommendation serializes a Recommendation to bytes.
func MarshalRecommendation(rec *core.Recommendation) []byte {
	buf := make([]byte, core.RecommendationMUS.Size(*rec))
	core.RecommendationMUS.Marshal(*rec, buf)
	return buf
}

// UnmarshalRecommendation deserializes a Recommendation from bytes.
func UnmarshalRecommendation(data []byte) (*core.Recommendation, error) {
	rec, _, err := core.RecommendationMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &rec, nil
}

// MarshalRecommendationResult serializes a RecommendationResult to bytes.
func MarshalRecommendationResult(result *core.RecommendationResult) []byte {
	buf := make([]byte, core.RecommendationResultMUS.Size(*result))
	core.RecommendationResultMUS.Marshal(*result, buf)
	return buf
}

// UnmarshalRecommendationResult deserializes a RecommendationResult from bytes.
func UnmarshalRecommendationResult(data []byte) (*core.RecommendationResult, error) {
	result, _, err := core.RecommendationResultMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &result, nil
}

// MarshalTag serializes a Tag to bytes.
func MarshalTag(tag *core.Tag) []byte {
	buf := make([]byte, core.TagMUS.Size(*tag))
	core.TagMUS.Marshal(*tag, buf)
	return buf
}

// UnmarshalTag deserializes a Tag from bytes.
func UnmarshalTag(data []byte) (*core.Tag, error) {
	tag, _, err := core.TagMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return &tag, nil
}

// MarshalVector serializes a bare embedding vector (query cache values).
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, core.VectorMUS.Size(vector))
	core.VectorMUS.Marshal(vector, buf)
	return buf
}

// UnmarshalVector deserializes a bare embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	vector, _, err := core.VectorMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return vector, nil
}
