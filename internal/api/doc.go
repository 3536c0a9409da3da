// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

/*
Package api provides the read-only HTTP API over stored recommendations and
the catalog.

Endpoints:

	GET /api/recommendations?user_id=|item_id=&model=&limit=
	GET /api/items[?ids=1,2,3]
	GET /api/users
	GET /api/users/{id}
	GET /api/ratings[?user_id=&item_id=]
	GET /api/groups
	GET /api/group-sizes
	GET /api/group-ratings[?group_id=]
	GET /healthz
	GET /metrics
	GET /ws (websocket: set_generated and run_completed messages)

Every /api response uses the APIResponse envelope:

	{"success":true,"data":{...},"meta":{"request_id":"...","timestamp":"...","duration_ms":1}}
	{"success":false,"error":{"code":"NOT_FOUND","message":"User not found"},"meta":{...}}

Successful payloads are cached per query for server.cache_ttl. The server
clears the cache when a run-completed event arrives (Handler.InvalidateCache),
so clients never read sets older than the last finished run for longer than
event delivery takes.

Middleware stack (outermost first): request id, real IP, panic recovery,
CORS, then for /api rate limiting (go-chi/httprate), Prometheus metrics,
access log and gzip.
*/
package api
