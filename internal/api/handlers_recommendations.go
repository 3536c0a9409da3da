// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/recsys/internal/cache"
	"github.com/tomtom215/recsys/internal/recommend"
)

// RecommendationsResponse is the payload of GET /api/recommendations.
type RecommendationsResponse struct {
	TargetType      recommend.TargetType   `json:"target_type"`
	TargetID        int64                  `json:"target_id"`
	TargetKey       string                 `json:"target_key"`
	Model           *string                `json:"model"`
	Limit           int                    `json:"limit"`
	Recommendations []ModelRecommendations `json:"recommendations"`
}

// ModelRecommendations is the latest set of one model, cut to the limit.
type ModelRecommendations struct {
	Model       string                 `json:"model"`
	Items       []recommend.ScoredItem `json:"items"`
	GeneratedAt time.Time              `json:"generated_at"`
}

// Recommendations returns the latest set per model for a user or an item.
//
// Query parameters:
//   - user_id or item_id (one required; user_id wins when both are set)
//   - model: optional model filter
//   - limit: items per model, 1-100, default 10
//
// Responds 404 when the target does not exist or has no stored sets.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req, err := parseRecommendationsRequest(r)
	if err != nil {
		rw.FromError(err)
		return
	}

	key := cache.GenerateKey("recommendations", req)
	data, hit, err := h.cached(key, func() (interface{}, error) {
		return h.loadRecommendations(r.Context(), req)
	})
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(data, hit)
}

func (h *Handler) loadRecommendations(ctx context.Context, req *RecommendationsRequest) (*RecommendationsResponse, error) {
	targetType, targetID := recommend.TargetUser, int64(0)
	exists := h.store.UserExists
	notFoundMsg := "User not found"
	if req.UserID != nil {
		targetID = *req.UserID
	} else {
		targetType, targetID = recommend.TargetItem, *req.ItemID
		exists = h.store.ItemExists
		notFoundMsg = "Item not found"
	}

	ok, err := exists(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFound(notFoundMsg, nil)
	}

	sets, err := h.store.Latest(ctx, targetType, targetID, req.Model)
	if err != nil {
		return nil, err
	}
	if len(sets) == 0 {
		return nil, notFound("No recommendations found for the requested target", nil)
	}

	resp := &RecommendationsResponse{
		TargetType:      targetType,
		TargetID:        targetID,
		TargetKey:       recommend.TargetKey(targetType, targetID),
		Limit:           req.Limit,
		Recommendations: make([]ModelRecommendations, 0, len(sets)),
	}
	if req.Model != "" {
		model := req.Model
		resp.Model = &model
	}

	for _, set := range sets {
		items := set.Items
		if len(items) > req.Limit {
			items = items[:req.Limit]
		}
		if items == nil {
			items = []recommend.ScoredItem{}
		}
		resp.Recommendations = append(resp.Recommendations, ModelRecommendations{
			Model:       set.Model,
			Items:       items,
			GeneratedAt: set.GeneratedAt,
		})
	}
	return resp, nil
}
