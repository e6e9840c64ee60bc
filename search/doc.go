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

// Package search finds catalog books semantically similar to a free-text
// query.
//
// The Searcher embeds the query, runs a nearest-neighbor search against
// the vector index, and resolves every hit back to its catalog record.
// The vector index is treated as a lossy view of the catalog: hits whose
// payload lacks a key, or whose key no longer resolves to a catalog
// record, are skipped rather than surfaced as errors.
package search
