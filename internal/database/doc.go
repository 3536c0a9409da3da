// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package database provides the DuckDB-backed recommendation store.
//
// DB implements the pipeline's persistence port (recommend.Store and
// recommend.RatingSource) and the read contract used by the API
// (recommend.SetReader), plus the item, user and rating queries the API
// serves directly.
//
// # Tables
//
//   - items (id, title, url, description)
//   - users (id, gender, age_range, married)
//   - ratings (user_id, item_id, rating, app, data, ease, class, semester, lockdown)
//   - recommendations (id, run_id, target_type, target_id, target_key, model, items, generated_at)
//
// Recommendation rows are append-only. Every run inserts one row per
// (model, target); Latest selects the newest generated_at per model. The
// items column holds the ranked list as JSON: [{"item_id":2,"score":0.91}].
//
// # Schema Management
//
// New never creates or alters tables. CreateSchema and Bootstrap are used by
// cmd/bootstrap to build a database from CSV exports:
//
//	db, err := database.New(&cfg.Database)
//	report, err := db.Bootstrap(ctx, "data/")
//
// # Error Classification
//
// Put reports connection loss (closed database, bad connection, lock
// failures) as *recommend.StoreUnavailableError so the orchestrator halts
// the run. Any other failure is an ordinary error and counts as one failed
// write.
//
// # Thread Safety
//
// DB is safe for concurrent use. The connection pool is sized to the CPU
// count and every query without a deadline gets a 30 second timeout.
package database
