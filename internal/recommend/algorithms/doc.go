// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package algorithms implements the scoring models of the pipeline.
//
// Each model implements recommend.Model and is registered with a
// recommend.Registry at start-up.
//
// # Models
//
// Similarity:
//   - item_similarity: cosine similarity of item text embeddings
//
// Sampling:
//   - random: seeded sample of items per user
//   - random_item: seeded sample of other items per item
//
// # Embeddings
//
// Any eino embedding.Embedder can back item_similarity. HashingEmbedder is
// the deterministic local default; NewEmbedder also builds the OpenAI
// embedder from configuration. Vectors are held in memory, or spilled to
// BadgerDB when the index is built in streaming mode. Both paths scan items
// in ascending id order through the same bounded top-k heap, so their output
// is bit-identical.
//
// # Determinism
//
// Sampling draws from a PCG generator seeded per target with
// SHA-256(seed, target id). No generator is shared between targets, so the
// output does not depend on worker scheduling.
//
// # Thread Safety
//
// Prepare acquires an exclusive lock while Score uses a shared lock, so
// every target of a run can be scored concurrently once Prepare returns.
package algorithms
