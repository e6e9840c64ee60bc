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

import "errors"

// Domain validation errors
var (
	// ErrValidation is the root of the validation error family.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidEbook indicates an Ebook failed validation.
	ErrInvalidEbook = errors.New("invalid ebook")

	// ErrInvalidISBN indicates a catalog key is not a 13-digit numeric string.
	ErrInvalidISBN = errors.New("invalid isbn")

	// ErrInvalidEmbeddingRecord indicates an EmbeddingRecord failed validation.
	ErrInvalidEmbeddingRecord = errors.New("invalid embedding record")

	// ErrDimensionMismatch indicates a vector has the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyText indicates a text field is empty after trimming.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidRecommendation indicates a Recommendation failed validation.
	ErrInvalidRecommendation = errors.New("invalid recommendation")

	// ErrEmptyTagName indicates the tag Name field is empty.
	ErrEmptyTagName = errors.New("tag name cannot be empty")
)
