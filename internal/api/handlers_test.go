// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recsys/internal/cache"
	"github.com/tomtom215/recsys/internal/database"
	"github.com/tomtom215/recsys/internal/eventprocessor"
	"github.com/tomtom215/recsys/internal/recommend"
)

// mockStore is an in-memory DataStore.
type mockStore struct {
	mu          sync.Mutex
	items       []recommend.Item
	users       []recommend.User
	sets        []recommend.RecommendationSet
	ratings     []database.Rating
	groups      []database.Group
	sizes       []database.GroupSize
	groupRates  []database.GroupRating
	pingErr     error
	err         error
	latestCalls int
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) Latest(_ context.Context, target recommend.TargetType, id int64, model string) ([]recommend.RecommendationSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestCalls++
	if m.err != nil {
		return nil, m.err
	}

	latest := make(map[string]recommend.RecommendationSet)
	for _, s := range m.sets {
		if s.TargetType != target || s.TargetID != id || (model != "" && s.Model != model) {
			continue
		}
		if cur, ok := latest[s.Model]; !ok || s.GeneratedAt.After(cur.GeneratedAt) {
			latest[s.Model] = s
		}
	}
	out := make([]recommend.RecommendationSet, 0, len(latest))
	for _, s := range latest {
		out = append(out, s)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Model < out[b].Model })
	return out, nil
}

func (m *mockStore) ItemExists(_ context.Context, id int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, it := range m.items {
		if it.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) UserExists(_ context.Context, id int64) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	for _, u := range m.users {
		if u.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) ListItems(context.Context) ([]recommend.Item, error) {
	return m.items, m.err
}

func (m *mockStore) GetItems(_ context.Context, ids []int64) ([]recommend.Item, []int64, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	byID := make(map[int64]recommend.Item)
	for _, it := range m.items {
		byID[it.ID] = it
	}
	var found []recommend.Item
	var missing []int64
	seen := make(map[int64]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if it, ok := byID[id]; ok {
			found = append(found, it)
		} else {
			missing = append(missing, id)
		}
	}
	sort.Slice(found, func(a, b int) bool { return found[a].ID < found[b].ID })
	sort.Slice(missing, func(a, b int) bool { return missing[a] < missing[b] })
	return found, missing, nil
}

func (m *mockStore) ListUsers(context.Context) ([]recommend.User, error) {
	return m.users, m.err
}

func (m *mockStore) GetUser(_ context.Context, id int64) (*recommend.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *mockStore) ListRatings(_ context.Context, f database.RatingFilter) ([]database.Rating, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []database.Rating{}
	for _, r := range m.ratings {
		if f.UserID != nil && r.UserID != *f.UserID {
			continue
		}
		if f.ItemID != nil && r.ItemID != *f.ItemID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) ListGroups(context.Context) ([]database.Group, error) {
	return append([]database.Group{}, m.groups...), m.err
}

func (m *mockStore) ListGroupSizes(context.Context) ([]database.GroupSize, error) {
	return append([]database.GroupSize{}, m.sizes...), m.err
}

func (m *mockStore) ListGroupRatings(_ context.Context, groupID *int64) ([]database.GroupRating, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []database.GroupRating{}
	for _, r := range m.groupRates {
		if groupID != nil && r.GroupID != *groupID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func int64Ptr(v int64) *int64 { return &v }

func scored(ids ...int64) []recommend.ScoredItem {
	out := make([]recommend.ScoredItem, len(ids))
	for i, id := range ids {
		out[i] = recommend.ScoredItem{ItemID: id, Score: float64(len(ids) - i)}
	}
	return out
}

func newTestStore() *mockStore {
	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	return &mockStore{
		items: []recommend.Item{
			{ID: 1, Title: "Neural Networks"},
			{ID: 2, Title: "Recommender Systems"},
			{ID: 3, Title: "Transformers"},
		},
		users: []recommend.User{
			{ID: 10, AgeRange: "18-24"},
			{ID: 11},
		},
		sets: []recommend.RecommendationSet{
			{RunID: "r1", TargetType: recommend.TargetUser, TargetID: 10, Model: "random", GeneratedAt: older, Items: scored(3, 2, 1)},
			{RunID: "r2", TargetType: recommend.TargetUser, TargetID: 10, Model: "random", GeneratedAt: newer, Items: scored(1, 2, 3)},
			{RunID: "r2", TargetType: recommend.TargetUser, TargetID: 10, Model: "popular", GeneratedAt: newer, Items: scored(2)},
			{RunID: "r2", TargetType: recommend.TargetItem, TargetID: 1, Model: "item_similarity", GeneratedAt: newer, Items: scored(2, 3)},
		},
		ratings: []database.Rating{
			{UserID: 10, ItemID: 1, Rating: int64Ptr(5)},
			{UserID: 10, ItemID: 2, Rating: int64Ptr(3)},
			{UserID: 11, ItemID: 2},
		},
		groups: []database.Group{
			{ID: 1, Members: []int64{10, 11}},
			{ID: 2, Members: []int64{}},
		},
		sizes: []database.GroupSize{{GroupID: 1, Size: 2}},
		groupRates: []database.GroupRating{
			{GroupID: 1, ItemID: 1, Rating: int64Ptr(4)},
			{GroupID: 1, ItemID: 3},
			{GroupID: 2, ItemID: 2, Rating: int64Ptr(5)},
		},
	}
}

// testResponse mirrors APIResponse with a raw payload.
type testResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
	Meta *APIMeta `json:"meta"`
}

func newTestServer(t *testing.T, store DataStore, withCache bool) (http.Handler, *Handler) {
	t.Helper()
	var respCache *cache.Cache
	if withCache {
		respCache = cache.New(time.Minute)
		t.Cleanup(respCache.Close)
	}
	h := NewHandler(store, respCache)
	mw := DefaultChiMiddlewareConfig()
	mw.RateLimitRequests = 0
	return NewRouter(h, NewChiMiddleware(mw)).SetupChi(), h
}

func doGet(t *testing.T, srv http.Handler, target string) (int, testResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("GET %s: decode %q: %v", target, rec.Body.String(), err)
	}
	return rec.Code, resp
}

func TestRecommendations(t *testing.T) {
	srv, _ := newTestServer(t, newTestStore(), false)

	tests := []struct {
		name      string
		target    string
		status    int
		code      string
		wantType  recommend.TargetType
		wantKey   string
		wantSets  map[string][]int64
		wantLimit int
	}{
		{name: "no target", target: "/api/recommendations", status: 400, code: ErrCodeBadRequest},
		{name: "non-integer user", target: "/api/recommendations?user_id=abc", status: 400, code: ErrCodeBadRequest},
		{name: "non-integer limit", target: "/api/recommendations?user_id=10&limit=x", status: 400, code: ErrCodeBadRequest},
		{name: "limit zero", target: "/api/recommendations?user_id=10&limit=0", status: 400, code: ErrCodeValidationFailed},
		{name: "limit over max", target: "/api/recommendations?user_id=10&limit=101", status: 400, code: ErrCodeValidationFailed},
		{name: "bad model name", target: "/api/recommendations?user_id=10&model=Bad-Name", status: 400, code: ErrCodeValidationFailed},
		{name: "unknown user", target: "/api/recommendations?user_id=99", status: 404, code: ErrCodeNotFound},
		{name: "unknown item", target: "/api/recommendations?item_id=99", status: 404, code: ErrCodeNotFound},
		{name: "user without sets", target: "/api/recommendations?user_id=11", status: 404, code: ErrCodeNotFound},
		{name: "unknown model", target: "/api/recommendations?user_id=10&model=nope", status: 404, code: ErrCodeNotFound},
		{
			name: "latest per model", target: "/api/recommendations?user_id=10", status: 200,
			wantType: recommend.TargetUser, wantKey: "user_id#10", wantLimit: 10,
			wantSets: map[string][]int64{"popular": {2}, "random": {1, 2, 3}},
		},
		{
			name: "limit trims items", target: "/api/recommendations?user_id=10&limit=2", status: 200,
			wantType: recommend.TargetUser, wantKey: "user_id#10", wantLimit: 2,
			wantSets: map[string][]int64{"popular": {2}, "random": {1, 2}},
		},
		{
			name: "model filter", target: "/api/recommendations?user_id=10&model=random", status: 200,
			wantType: recommend.TargetUser, wantKey: "user_id#10", wantLimit: 10,
			wantSets: map[string][]int64{"random": {1, 2, 3}},
		},
		{
			name: "item target", target: "/api/recommendations?item_id=1", status: 200,
			wantType: recommend.TargetItem, wantKey: "item_id#1", wantLimit: 10,
			wantSets: map[string][]int64{"item_similarity": {2, 3}},
		},
		{
			name: "user wins over item", target: "/api/recommendations?user_id=10&item_id=1&model=popular", status: 200,
			wantType: recommend.TargetUser, wantKey: "user_id#10", wantLimit: 10,
			wantSets: map[string][]int64{"popular": {2}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := doGet(t, srv, tt.target)
			if status != tt.status {
				t.Fatalf("status = %d, want %d (%+v)", status, tt.status, resp.Error)
			}
			if tt.status != http.StatusOK {
				if resp.Success || resp.Error == nil || resp.Error.Code != tt.code {
					t.Fatalf("error = %+v, want code %s", resp.Error, tt.code)
				}
				return
			}

			var got RecommendationsResponse
			if err := json.Unmarshal(resp.Data, &got); err != nil {
				t.Fatalf("decode data: %v", err)
			}
			if got.TargetType != tt.wantType || got.TargetKey != tt.wantKey || got.Limit != tt.wantLimit {
				t.Errorf("header = %s %s %d", got.TargetType, got.TargetKey, got.Limit)
			}
			if len(got.Recommendations) != len(tt.wantSets) {
				t.Fatalf("got %d models, want %d", len(got.Recommendations), len(tt.wantSets))
			}
			for i, rec := range got.Recommendations {
				if i > 0 && got.Recommendations[i-1].Model > rec.Model {
					t.Errorf("models not ordered: %s before %s", got.Recommendations[i-1].Model, rec.Model)
				}
				want := tt.wantSets[rec.Model]
				if len(rec.Items) != len(want) {
					t.Fatalf("%s: %d items, want %d", rec.Model, len(rec.Items), len(want))
				}
				for j, it := range rec.Items {
					if it.ItemID != want[j] {
						t.Errorf("%s[%d] = %d, want %d", rec.Model, j, it.ItemID, want[j])
					}
				}
			}
		})
	}
}

func TestRecommendations_ModelEcho(t *testing.T) {
	srv, _ := newTestServer(t, newTestStore(), false)

	_, resp := doGet(t, srv, "/api/recommendations?user_id=10")
	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Data, &raw); err != nil {
		t.Fatal(err)
	}
	if v, ok := raw["model"]; !ok || v != nil {
		t.Errorf("model = %v (present %v), want explicit null", v, ok)
	}
}

func TestRecommendations_CacheAndInvalidate(t *testing.T) {
	store := newTestStore()
	srv, h := newTestServer(t, store, true)
	target := "/api/recommendations?user_id=10"

	_, first := doGet(t, srv, target)
	_, second := doGet(t, srv, target)
	if first.Meta.Cached || !second.Meta.Cached {
		t.Errorf("cached flags = %v, %v; want false, true", first.Meta.Cached, second.Meta.Cached)
	}
	if store.latestCalls != 1 {
		t.Errorf("Latest called %d times, want 1", store.latestCalls)
	}

	err := h.InvalidateCache(context.Background(), &eventprocessor.RunCompletedEvent{RunID: "r3", State: "completed"})
	if err != nil {
		t.Fatalf("InvalidateCache: %v", err)
	}

	_, third := doGet(t, srv, target)
	if third.Meta.Cached || store.latestCalls != 2 {
		t.Errorf("after invalidation: cached=%v calls=%d", third.Meta.Cached, store.latestCalls)
	}
}

func TestRecommendations_ErrorsNotCached(t *testing.T) {
	store := newTestStore()
	srv, _ := newTestServer(t, store, true)

	for i := 0; i < 2; i++ {
		status, resp := doGet(t, srv, "/api/recommendations?user_id=11")
		if status != http.StatusNotFound || resp.Meta.Cached {
			t.Fatalf("attempt %d: status=%d cached=%v", i, status, resp.Meta.Cached)
		}
	}
	if store.latestCalls != 2 {
		t.Errorf("Latest called %d times, want 2", store.latestCalls)
	}
}

func TestStoreFailure(t *testing.T) {
	store := newTestStore()
	store.err = errors.New("database is closed")
	srv, _ := newTestServer(t, store, true)

	for _, target := range []string{
		"/api/recommendations?user_id=10",
		"/api/items",
		"/api/users",
		"/api/users/10",
		"/api/ratings",
	} {
		t.Run(target, func(t *testing.T) {
			status, resp := doGet(t, srv, target)
			if status != http.StatusInternalServerError || resp.Error.Code != ErrCodeDatabaseError {
				t.Errorf("status=%d error=%+v", status, resp.Error)
			}
			if resp.Error.Message != "A database error occurred" {
				t.Errorf("store error leaked: %q", resp.Error.Message)
			}
		})
	}
}

func TestInvalidateCache_NoCache(t *testing.T) {
	h := NewHandler(newTestStore(), nil)
	if err := h.InvalidateCache(context.Background(), &eventprocessor.RunCompletedEvent{}); err != nil {
		t.Errorf("InvalidateCache without cache: %v", err)
	}
}
