// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"context"
	"time"

	"github.com/tomtom215/recsys/internal/cache"
	"github.com/tomtom215/recsys/internal/database"
	"github.com/tomtom215/recsys/internal/eventprocessor"
	"github.com/tomtom215/recsys/internal/logging"
	"github.com/tomtom215/recsys/internal/recommend"
	ws "github.com/tomtom215/recsys/internal/websocket"
)

// DataStore is the read side of the database used by the handlers.
// *database.DB satisfies it.
type DataStore interface {
	Ping(ctx context.Context) error
	Latest(ctx context.Context, target recommend.TargetType, targetID int64, model string) ([]recommend.RecommendationSet, error)
	ItemExists(ctx context.Context, id int64) (bool, error)
	UserExists(ctx context.Context, id int64) (bool, error)
	ListItems(ctx context.Context) ([]recommend.Item, error)
	GetItems(ctx context.Context, ids []int64) ([]recommend.Item, []int64, error)
	ListUsers(ctx context.Context) ([]recommend.User, error)
	GetUser(ctx context.Context, id int64) (*recommend.User, error)
	ListRatings(ctx context.Context, filter database.RatingFilter) ([]database.Rating, error)
	ListGroups(ctx context.Context) ([]database.Group, error)
	ListGroupSizes(ctx context.Context) ([]database.GroupSize, error)
	ListGroupRatings(ctx context.Context, groupID *int64) ([]database.GroupRating, error)
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, cache plumbing (this file)
//   - handlers_recommendations.go: recommendation lookups
//   - handlers_catalog.go: items, users, ratings and groups
//   - handlers_health.go: liveness and readiness
//   - handlers_websocket.go: run progress stream
type Handler struct {
	store     DataStore
	cache     *cache.Cache
	startTime time.Time
	wsHub     *ws.Hub
	wsOrigins []string
}

// NewHandler creates a handler. A nil cache disables response caching.
//
//	respCache := cache.New(cfg.Server.CacheTTL)
//	handler := api.NewHandler(db, respCache)
//	router := api.NewRouter(handler, api.NewChiMiddleware(nil))
func NewHandler(store DataStore, respCache *cache.Cache) *Handler {
	return &Handler{
		store:     store,
		cache:     respCache,
		startTime: time.Now(),
	}
}

// InvalidateCache drops every cached response. It is the run-completed
// event handler of the server, so new sets are visible right after a run.
func (h *Handler) InvalidateCache(ctx context.Context, event *eventprocessor.RunCompletedEvent) error {
	if h.cache == nil {
		return nil
	}
	h.cache.Clear()
	logging.Ctx(ctx).Info().
		Str("run_id", event.RunID).
		Str("state", event.State).
		Int64("written", event.Written).
		Msg("Response cache invalidated after run")
	return nil
}

// cached returns the payload for key, running load on a miss. Errors are
// never cached, and a load that raced with an invalidation is not stored.
func (h *Handler) cached(key string, load func() (interface{}, error)) (interface{}, bool, error) {
	if h.cache == nil {
		data, err := load()
		return data, false, err
	}

	if data, ok := h.cache.Get(key); ok {
		return data, true, nil
	}

	gen := h.cache.Generation()
	data, err := load()
	if err != nil {
		return nil, false, err
	}
	h.cache.SetIfGeneration(key, data, gen)
	return data, false, nil
}
