// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/recsys/internal/middleware"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. A nil middleware factory uses the defaults.
func NewRouter(handler *Handler, chiMW *ChiMiddleware) *Router {
	if chiMW == nil {
		chiMW = NewChiMiddleware(nil)
	}
	return &Router{handler: handler, chiMiddleware: chiMW}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to all routes in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // global so OPTIONS preflight is answered

	// Operational endpoints are not rate limited
	r.Get("/healthz", router.handler.Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/", router.handler.Root)

	// Outside /api: compression and the access log wrap the ResponseWriter,
	// which would break the connection hijack.
	r.Get("/ws", router.handler.WebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.AccessLog)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Get("/recommendations", router.handler.Recommendations)
		r.Get("/items", router.handler.Items)
		r.Get("/users", router.handler.Users)
		r.Get("/users/{id}", router.handler.User)
		r.Get("/ratings", router.handler.Ratings)
		r.Get("/groups", router.handler.Groups)
		r.Get("/group-sizes", router.handler.GroupSizes)
		r.Get("/group-ratings", router.handler.GroupRatings)
	})

	return r
}
