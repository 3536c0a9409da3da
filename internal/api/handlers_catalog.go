// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/recsys/internal/cache"
	"github.com/tomtom215/recsys/internal/database"
	"github.com/tomtom215/recsys/internal/recommend"
)

// Items lists the catalog, or the items named by ?ids=1,2,3.
// Responds 404 listing the missing ids when any requested item is absent.
func (h *Handler) Items(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	raw := r.URL.Query().Get("ids")
	if raw == "" {
		h.serveCached(rw, cache.GenerateKey("items", nil), func() (interface{}, error) {
			return nonNil(h.store.ListItems(r.Context()))
		})
		return
	}

	ids, err := parseIDList(raw)
	if err != nil {
		rw.FromError(err)
		return
	}

	h.serveCached(rw, cache.GenerateKey("items", ids), func() (interface{}, error) {
		items, missing, err := h.store.GetItems(r.Context(), ids)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, notFound(fmt.Sprintf("Items not found: %v", missing), map[string][]int64{"missing": missing})
		}
		return items, nil
	})
}

// Users lists every user.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	h.serveCached(rw, cache.GenerateKey("users", nil), func() (interface{}, error) {
		return nonNil(h.store.ListUsers(r.Context()))
	})
}

// User returns one user by id.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		rw.BadRequest("user id must be an integer")
		return
	}

	h.serveCached(rw, cache.GenerateKey("user", id), func() (interface{}, error) {
		user, err := h.store.GetUser(r.Context(), id)
		if errors.Is(err, database.ErrNotFound) {
			return nil, notFound("User not found", nil)
		}
		return user, err
	})
}

// Ratings lists ratings, optionally filtered by user_id and item_id.
func (h *Handler) Ratings(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	req, err := parseRatingsRequest(r)
	if err != nil {
		rw.FromError(err)
		return
	}

	h.serveCached(rw, cache.GenerateKey("ratings", req), func() (interface{}, error) {
		return h.store.ListRatings(r.Context(), database.RatingFilter{UserID: req.UserID, ItemID: req.ItemID})
	})
}

// Groups lists every group with its member user ids.
func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	h.serveCached(rw, cache.GenerateKey("groups", nil), func() (interface{}, error) {
		return h.store.ListGroups(r.Context())
	})
}

// GroupSizes lists the declared group sizes.
func (h *Handler) GroupSizes(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	h.serveCached(rw, cache.GenerateKey("group_sizes", nil), func() (interface{}, error) {
		return h.store.ListGroupSizes(r.Context())
	})
}

// GroupRatings lists group ratings, optionally filtered by group_id.
func (h *Handler) GroupRatings(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	groupID, err := optionalInt64(r.URL.Query().Get("group_id"), "group_id")
	if err != nil {
		rw.FromError(err)
		return
	}

	h.serveCached(rw, cache.GenerateKey("group_ratings", groupID), func() (interface{}, error) {
		return h.store.ListGroupRatings(r.Context(), groupID)
	})
}

func (h *Handler) serveCached(rw *ResponseWriter, key string, load func() (interface{}, error)) {
	data, hit, err := h.cached(key, load)
	if err != nil {
		rw.FromError(err)
		return
	}
	rw.Success(data, hit)
}

// nonNil keeps empty lists encoding as [] instead of null.
func nonNil[T recommend.Item | recommend.User](list []T, err error) (interface{}, error) {
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}
