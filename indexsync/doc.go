// Package indexsync delivers local embedding records into the external
// vector index with at-least-once semantics.
//
// The engine pages through unsynced records in deterministic order,
// mints and persists an idempotency token per record before any network
// call, upserts batches into the index and flips the synced flag only
// after a confirmed upsert. A failed batch leaves its records pending;
// the next pass retries the same point ids, so redelivery never
// duplicates index points. Partial success is the expected steady state
// under provider flakiness, not an error.
//
// The package also contains the catalog-side feeder that computes
// embeddings for books that don't have one yet.
package indexsync
