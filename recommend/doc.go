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

// Package recommend turns free-text user requests into stored,
// repeatable book recommendations.
//
// A request is deduplicated per user by the hash of its normalized
// text: submitting the same request twice updates the existing
// recommendation (its tag set is replaced wholesale) instead of
// creating a second one. The similarity search runs after the
// recommendation is stored and its results replace any previous
// result set atomically, so a failed search leaves the recommendation
// intact and retryable.
package recommend
