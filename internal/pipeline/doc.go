// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package pipeline assembles a runnable recommendation pipeline from
// configuration.
//
// It is the composition root shared by the batch CLI and the scheduled
// service: the embedder and optional embedding cache come from the
// embedding section, the circuit breaker from the store section, and the
// orchestrator settings from the pipeline section.
//
//	runner, err := pipeline.New(ctx, cfg, db, logger)
//	if err != nil {
//	    return err
//	}
//	defer runner.Close()
//	report, err := runner.RunOnce(ctx)
package pipeline
