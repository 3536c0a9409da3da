// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

/*
Package metrics provides Prometheus instrumentation for the pipeline and the read API.

All collectors are registered on the default registry through promauto and are
updated through the Record* helpers so call sites never touch label ordering.

# Pipeline

  - recsys_pipeline_targets_total{model,outcome}
  - recsys_pipeline_runs_total{state} and recsys_pipeline_run_duration_seconds{state}
  - recsys_pipeline_inflight_targets
  - recsys_store_writes_total{result}, recsys_store_write_duration_seconds
  - recsys_embedding_build_duration_seconds{provider,mode}
  - recsys_circuit_breaker_state{name}

# Export

The server exposes /metrics via promhttp. The batch CLI pushes to a Pushgateway
when metrics.push_url is configured:

	if err := metrics.Push(ctx, cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
	    logging.Warn().Err(err).Msg("metrics push failed")
	}
*/
package metrics
