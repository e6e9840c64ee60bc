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


// Package ai provides the text-embedding abstraction used by bookrec.
//
// The Embedder interface hides the concrete embedding provider. The
// ai/openai subpackage implements it against OpenAI-compatible APIs;
// ai/mock provides deterministic test doubles.
//
// BatchEmbedder wraps any Embedder with the guarantees the rest of the
// system relies on: validated input texts, a hard provider batch cap,
// per-call timeouts, positional input/output alignment and a fixed
// output dimension. Callers that zip inputs to outputs positionally
// should always go through BatchEmbedder rather than a raw Embedder.
package ai
