// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package storage provides BadgerDB-backed vector storage for the similarity
// engine.
//
// Two stores are provided:
//
//   - SpillStore holds one run's item embeddings on disk so catalogs larger
//     than memory can be indexed. The first vectors written stay resident
//     in a bounded golang-lru cache; scans and point reads serve them from
//     memory and decode only the remainder from badger.
//   - EmbeddingCache is a content-addressed cache of embeddings that survives
//     across runs. Keys hash the provider, model, dimensions and text, so a
//     changed description or embedder never returns a stale vector.
//
// # Storage Format
//
// Vectors are stored as little-endian IEEE-754 float64 values. Spill keys
// are the order-preserving big-endian encoding of the item id, so a prefix
// scan visits items in ascending id order.
//
// # Thread Safety
//
// Both stores are safe for concurrent use.
package storage
