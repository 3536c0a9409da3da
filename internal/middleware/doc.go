// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

/*
Package middleware provides HTTP middleware for the read API.

Key Components:

  - RequestID: request tracking through the X-Request-ID header and the
    logging context
  - PrometheusMetrics: request count, latency and in-flight gauge, labelled
    by chi route pattern
  - AccessLog: one structured line per request

All middleware has the standard func(http.Handler) http.Handler shape and is
mounted with chi's r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

RequestID must run first so that later middleware and handlers log with
the request_id field.
*/
package middleware
