// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

/*
Package config provides centralized configuration management for Recsys.

Configuration is loaded with Koanf v2 from three layers, later layers winning:

  - Built-in defaults (defaultConfig)
  - An optional YAML file, found through CONFIG_PATH or DefaultConfigPaths
  - Mapped environment variables (see envMappings)

Comma-separated environment values are split for slice fields such as
pipeline.models and server.cors_origins.

# Sections

  - database: DuckDB path and tuning
  - pipeline: default models, top-N, seed, concurrency, rated-item exclusion
  - embedding: embedder provider, batching, streaming spill and cache
  - store: circuit breaker around recommendation writes
  - events: run event publishing over Watermill (gochannel or NATS)
  - metrics: Prometheus Pushgateway for batch runs
  - server: read API listener, CORS, rate limiting, response cache, schedule
  - logging: zerolog level, format and caller

# Example

	cfg, err := config.Load()
	if err != nil {
	    return err
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

Validate runs one validator per section and reports the first problem using
the environment variable name that controls the offending field.
*/
package config
