// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/recsys/internal/validation"
)

// Recommendation query limits.
const (
	DefaultRecommendationLimit = 10
	MaxRecommendationLimit     = 100
)

// RecommendationsRequest holds the validated query of GET /api/recommendations.
// UserID wins when both targets are given.
type RecommendationsRequest struct {
	UserID *int64 `json:"user_id"`
	ItemID *int64 `json:"item_id"`
	Model  string `json:"model" validate:"omitempty,model_name"`
	Limit  int    `json:"limit" validate:"min=1,max=100"`
}

// RatingsRequest holds the optional filters of GET /api/ratings.
type RatingsRequest struct {
	UserID *int64 `json:"user_id"`
	ItemID *int64 `json:"item_id"`
}

// parseRecommendationsRequest reads and validates the recommendation query.
func parseRecommendationsRequest(r *http.Request) (*RecommendationsRequest, error) {
	q := r.URL.Query()

	req := &RecommendationsRequest{
		Model: strings.TrimSpace(q.Get("model")),
		Limit: DefaultRecommendationLimit,
	}

	var err error
	if req.UserID, err = optionalInt64(q.Get("user_id"), "user_id"); err != nil {
		return nil, err
	}
	if req.ItemID, err = optionalInt64(q.Get("item_id"), "item_id"); err != nil {
		return nil, err
	}
	if req.UserID == nil && req.ItemID == nil {
		return nil, badRequest("Provide either user_id or item_id")
	}

	if raw := q.Get("limit"); raw != "" {
		if req.Limit, err = strconv.Atoi(raw); err != nil {
			return nil, badRequest("limit must be an integer")
		}
	}

	if verr := validation.ValidateStruct(req); verr != nil {
		return nil, &requestError{
			status:  http.StatusBadRequest,
			code:    ErrCodeValidationFailed,
			message: verr.Error(),
			details: verr.Fields(),
		}
	}
	return req, nil
}

// parseRatingsRequest reads the optional rating filters.
func parseRatingsRequest(r *http.Request) (*RatingsRequest, error) {
	q := r.URL.Query()

	userID, err := optionalInt64(q.Get("user_id"), "user_id")
	if err != nil {
		return nil, err
	}
	itemID, err := optionalInt64(q.Get("item_id"), "item_id")
	if err != nil {
		return nil, err
	}
	return &RatingsRequest{UserID: userID, ItemID: itemID}, nil
}

// parseIDList parses a comma-separated id list. Blank entries are ignored.
func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, badRequest("ids must be integers separated by commas")
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, badRequest("No valid ids provided")
	}
	return ids, nil
}

func optionalInt64(raw, name string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, badRequest(name + " must be an integer")
	}
	return &v, nil
}
