// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package recommend runs offline recommendation generation.
//
// # Architecture
//
// A run is driven by the Orchestrator:
//
//   - Resolve requested model names against the Registry
//   - Load the Catalog once from the Store (Loading)
//   - Prepare every model against the catalog
//   - Score every target of every model on a bounded worker pool (Generating)
//   - Persist each RecommendationSet through the Store
//
// Two scoring variants exist. Similarity models rank items by cosine
// similarity of text embeddings; sampling models draw a seeded pseudo-random
// subset of the catalog. Implementations live in the algorithms package.
//
// # Failure Handling
//
// Per-target problems never abort a run:
//
//   - NotFoundError and InsufficientCatalogError skip the target
//   - StorePersistError counts a failed write and generation continues
//
// Run-level problems do:
//
//   - UnknownModelError before anything is loaded
//   - CatalogUnavailableError or a failed Prepare while Loading
//   - StoreUnavailableError while Generating, reporting completed and
//     pending counts
//
// Wrap the store in a BreakerStore so that a store which stops responding
// surfaces as StoreUnavailableError.
//
// # Usage
//
//	registry := recommend.NewRegistry(logger)
//	registry.MustRegister(algorithms.NewSimilarityModel(embedder, meta, algorithms.SimilarityOptions{}))
//	registry.MustRegister(algorithms.NewSamplingModel(algorithms.ModelRandom, recommend.TargetUser))
//	registry.Seal()
//
//	orch, err := recommend.NewOrchestrator(registry, store, recommend.DefaultConfig(), logger)
//	report, err := orch.Run(ctx, recommend.RunRequest{
//	    Models: []string{"random", "item_similarity"},
//	    TopN:   5,
//	    Seed:   42,
//	})
//
// # Thread Safety
//
// One run is active per Orchestrator at a time. Stop may be called from any
// goroutine; models must be safe for concurrent Score calls after Prepare.
package recommend
