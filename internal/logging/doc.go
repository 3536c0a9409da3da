// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package logging provides centralized zerolog-based structured logging for Recsys.
//
// # Overview
//
// The package provides:
//   - A global zerolog logger configured once from config.LoggingConfig
//   - JSON output for production and console output for development
//   - Context loggers carrying run_id (pipeline runs) and request_id (read API)
//   - An slog.Handler adapter for sutureslog
//   - A watermill.LoggerAdapter for the event publisher and subscriber
//
// # Quick Start
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//
//	logging.Info().Msg("Server starting")
//	logging.Error().Err(err).Msg("Operation failed")
//
//	ctx = logging.ContextWithRunID(ctx, runID)
//	logging.Ctx(ctx).Warn().Str("model", "random").Int64("target_id", 7).Msg("target skipped")
//
// # Configuration
//
// Environment Variables (through internal/config):
//
//	LOG_LEVEL   - Minimum log level: trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - Output format: json, console (default: json)
//	LOG_CALLER  - Include caller file:line: true, false (default: false)
//
// # Field Names
//
// Pipeline logs use the same field names everywhere so runs can be filtered:
// run_id, model, target_type, target_id, component.
//
// Always terminate log chains with .Msg() or .Send(); an unterminated event
// is never written.
package logging
