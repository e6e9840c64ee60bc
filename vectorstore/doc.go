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


// Package vectorstore defines the external vector index abstraction.
//
// The index stores fixed-dimension points and answers nearest-neighbor
// queries; bookrec treats its wire protocol as a black box behind the
// Index interface. The qdrant subpackage implements it over Qdrant's
// REST API; the memory subpackage is an in-process implementation for
// tests and local runs.
//
// All upserts are idempotent on the point id: re-upserting the same id
// overwrites, never duplicates. That property is what makes the sync
// engine's at-least-once delivery safe.
package vectorstore
