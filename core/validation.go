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


package core

import (
	"fmt"
	"strings"
)

// ValidateISBN validates a catalog key: exactly 13 numeric digits.
func ValidateISBN(isbn string) error {
	if len(isbn) != ISBNLength {
		return fmt.Errorf("%w: expected %d digits, got %d", ErrInvalidISBN, ISBNLength, len(isbn))
	}
	for _, r := range isbn {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: non-digit character %q", ErrInvalidISBN, r)
		}
	}
	return nil
}

// ValidateEbook validates an Ebook according to domain rules.
//
// Validation rules:
//   - ISBN must be a 13-digit numeric string
//   - Title must not be empty
//
// NOT validated (populated later):
//   - HasEmbedding (flipped by the embedding feeder)
func ValidateEbook(ebook *Ebook) error {
	if ebook == nil {
		return fmt.Errorf("%w: ebook is nil", ErrInvalidEbook)
	}
	if err := ValidateISBN(ebook.ISBN); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEbook, err)
	}
	if strings.TrimSpace(ebook.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidEbook, ErrEmptyText)
	}
	return nil
}

// ValidateEmbeddingRecord validates an EmbeddingRecord.
// dimension is the configured provider vector size; the stored vector
// must have exactly that length.
func ValidateEmbeddingRecord(record *EmbeddingRecord, dimension int) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidEmbeddingRecord)
	}
	if record.Key == "" {
		return fmt.Errorf("%w: key is empty", ErrInvalidEmbeddingRecord)
	}
	if len(record.Vector) != dimension {
		return fmt.Errorf("%w: %w: expected %d, got %d",
			ErrInvalidEmbeddingRecord, ErrDimensionMismatch, dimension, len(record.Vector))
	}
	return nil
}

// ValidateRecommendation validates a Recommendation.
func ValidateRecommendation(rec *Recommendation) error {
	if rec == nil {
		return fmt.Errorf("%w: recommendation is nil", ErrInvalidRecommendation)
	}
	if strings.TrimSpace(rec.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecommendation, ErrEmptyText)
	}
	if rec.TextHash == "" {
		return fmt.Errorf("%w: text hash is empty", ErrInvalidRecommendation)
	}
	return nil
}

// ValidateTag validates a Tag.
func ValidateTag(tag *Tag) error {
	if tag == nil {
		return fmt.Errorf("%w: tag is nil", ErrValidation)
	}
	if strings.TrimSpace(tag.Name) == "" {
		return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyTagName)
	}
	return nil
}
