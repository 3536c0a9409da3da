// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"context"
	"net/http"
	"time"
)

// healthCheckTimeout bounds the database ping of a health check.
const healthCheckTimeout = 2 * time.Second

// HealthStatus is the payload of GET /healthz.
type HealthStatus struct {
	Status            string  `json:"status"`
	DatabaseConnected bool    `json:"database_connected"`
	Uptime            float64 `json:"uptime_seconds"`
	CacheHitRate      float64 `json:"cache_hit_rate,omitempty"`
}

// Health reports process health. It responds 503 when the database does
// not answer a ping.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := HealthStatus{
		Status:            "healthy",
		DatabaseConnected: h.store != nil && h.store.Ping(ctx) == nil,
		Uptime:            time.Since(h.startTime).Seconds(),
	}
	if h.cache != nil {
		status.CacheHitRate = h.cache.HitRate()
	}

	if !status.DatabaseConnected {
		status.Status = "degraded"
		rw.ErrorWithDetails(http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "database unavailable", status)
		return
	}
	rw.Success(status, false)
}

// Root identifies the service.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"message": "Recommender API"}, false)
}
