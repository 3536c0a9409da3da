// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recsys/internal/config"
	"github.com/tomtom215/recsys/internal/recommend"
	"github.com/tomtom215/recsys/internal/recommend/algorithms"
)

type memStore struct {
	mu      sync.Mutex
	catalog *recommend.Catalog
	sets    []*recommend.RecommendationSet
}

func (s *memStore) GetCatalog(context.Context) (*recommend.Catalog, error) {
	return s.catalog, nil
}

func (s *memStore) Put(_ context.Context, set *recommend.RecommendationSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets = append(s.sets, set)
	return nil
}

func (s *memStore) byModel() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int)
	for _, set := range s.sets {
		out[set.Model]++
	}
	return out
}

func newMemStore(t *testing.T) *memStore {
	t.Helper()
	catalog, err := recommend.NewCatalog(
		[]recommend.Item{
			{ID: 1, Title: "Neural Networks", Description: "Deep learning basics"},
			{ID: 2, Title: "Recommender Systems", Description: "Collaborative filtering and ranking"},
			{ID: 3, Title: "Transformers", Description: "Attention is all you need"},
			{ID: 4, Title: "Graph Learning", Description: "Message passing on graphs"},
		},
		[]recommend.User{{ID: 10}, {ID: 11}},
	)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return &memStore{catalog: catalog}
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pipeline.TopN = 2
	cfg.Pipeline.Concurrency = 2
	cfg.Embedding.Provider = algorithms.ProviderHashing
	cfg.Embedding.Dimensions = 64
	cfg.Embedding.CacheDir = ""
	cfg.Embedding.Streaming = false
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config, store recommend.Store) *Runner {
	t.Helper()
	r, err := New(context.Background(), cfg, store, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestNew_Validation(t *testing.T) {
	store := newMemStore(t)

	tests := []struct {
		name  string
		cfg   *config.Config
		store recommend.Store
	}{
		{"nil config", nil, store},
		{"nil store", testConfig(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, tt.store, zerolog.Nop())
			if !errors.Is(err, recommend.ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}

	t.Run("unknown embedding provider", func(t *testing.T) {
		cfg := testConfig()
		cfg.Embedding.Provider = "word2vec"
		if _, err := New(context.Background(), cfg, store, zerolog.Nop()); err == nil {
			t.Error("New() expected error for unknown provider")
		}
	})
}

func TestBuildRegistry(t *testing.T) {
	registry, closers, err := BuildRegistry(context.Background(), testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	defer func() { _ = closeAll(closers) }()

	want := []string{algorithms.ModelItemSimilarity, algorithms.ModelRandom, algorithms.ModelRandomItem}
	got := registry.Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if err := registry.Register(algorithms.NewSamplingModel("late", recommend.TargetUser)); err == nil {
		t.Error("Register() after BuildRegistry should fail on a sealed registry")
	}
}

func TestBuildRegistry_EmbeddingCache(t *testing.T) {
	cfg := testConfig()
	cfg.Embedding.CacheDir = t.TempDir()
	cfg.Embedding.CacheTTL = time.Hour

	_, closers, err := BuildRegistry(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	if len(closers) != 2 {
		t.Fatalf("closers = %d, want 2 (model and cache)", len(closers))
	}
	if err := closeAll(closers); err != nil {
		t.Errorf("closeAll() error = %v", err)
	}
}

func TestRunner_RunOnce(t *testing.T) {
	store := newMemStore(t)
	r := newTestRunner(t, testConfig(), store)

	report, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if report.State != recommend.StateCompleted {
		t.Errorf("State = %v, want completed", report.State)
	}
	if report.Failed != 0 {
		t.Errorf("Failed = %d, want 0", report.Failed)
	}

	counts := store.byModel()
	if counts[algorithms.ModelRandom] != 2 {
		t.Errorf("random sets = %d, want one per user", counts[algorithms.ModelRandom])
	}
	if counts[algorithms.ModelItemSimilarity] != 4 {
		t.Errorf("item_similarity sets = %d, want one per item", counts[algorithms.ModelItemSimilarity])
	}
	if counts[algorithms.ModelRandomItem] != 0 {
		t.Errorf("random_item ran without being requested")
	}
	if r.Running() {
		t.Error("Running() = true after run returned")
	}
}

func TestRunner_RepeatRunsAreDeterministic(t *testing.T) {
	store := newMemStore(t)
	cfg := testConfig()
	cfg.Pipeline.Models = []string{algorithms.ModelRandom, algorithms.ModelItemSimilarity, algorithms.ModelRandomItem}
	cfg.Pipeline.Seed = 7
	r := newTestRunner(t, cfg, store)

	first, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("first RunOnce() error = %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	second, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce() error = %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatalf("both runs share run id %s", first.RunID)
	}

	byRun := map[string]map[string]*recommend.RecommendationSet{
		first.RunID:  {},
		second.RunID: {},
	}
	store.mu.Lock()
	for _, set := range store.sets {
		byRun[set.RunID][set.Model+"/"+recommend.TargetKey(set.TargetType, set.TargetID)] = set
	}
	store.mu.Unlock()

	a, b := byRun[first.RunID], byRun[second.RunID]
	if len(a) != 10 || len(b) != 10 {
		t.Fatalf("sets per run = %d and %d, want 10 each", len(a), len(b))
	}
	for key, setA := range a {
		setB, ok := b[key]
		if !ok {
			t.Errorf("%s: missing from second run", key)
			continue
		}
		if len(setA.Items) != len(setB.Items) {
			t.Errorf("%s: %d items vs %d", key, len(setA.Items), len(setB.Items))
			continue
		}
		for i := range setA.Items {
			if setA.Items[i] != setB.Items[i] {
				t.Errorf("%s: items[%d] = %+v then %+v", key, i, setA.Items[i], setB.Items[i])
			}
		}
		if !setA.GeneratedAt.Before(setB.GeneratedAt) {
			t.Errorf("%s: generated_at %v then %v, want a later second run", key, setA.GeneratedAt, setB.GeneratedAt)
		}
	}
}

func TestRunner_RunExplicitRequest(t *testing.T) {
	store := newMemStore(t)
	r := newTestRunner(t, testConfig(), store)

	report, err := r.Run(context.Background(), recommend.RunRequest{
		Models: []string{algorithms.ModelRandomItem},
		TopN:   1,
		Seed:   7,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Written != 4 {
		t.Errorf("Written = %d, want 4", report.Written)
	}
	for _, set := range store.sets {
		if len(set.Items) > 1 {
			t.Errorf("set for %d has %d items, want at most 1", set.TargetID, len(set.Items))
		}
	}

	if _, err := r.Run(context.Background(), recommend.RunRequest{
		Models: []string{"missing_model"},
		TopN:   1,
	}); err == nil {
		t.Error("Run() expected error for unknown model")
	}
}

func TestRunner_DefaultRequest(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.Models = []string{algorithms.ModelRandom}
	cfg.Pipeline.Seed = 99
	r := newTestRunner(t, cfg, newMemStore(t))

	req := r.DefaultRequest()
	if req.TopN != 2 || req.Seed != 99 || len(req.Models) != 1 {
		t.Fatalf("DefaultRequest() = %+v", req)
	}

	req.Models[0] = "changed"
	if cfg.Pipeline.Models[0] != algorithms.ModelRandom {
		t.Error("DefaultRequest() shares the configured models slice")
	}
}

func TestRunner_BreakerState(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		want    string
	}{
		{"disabled", false, "disabled"},
		{"enabled", true, "closed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Store.BreakerEnabled = tt.enabled
			r := newTestRunner(t, cfg, newMemStore(t))
			if got := r.BreakerState(); got != tt.want {
				t.Errorf("BreakerState() = %q, want %q", got, tt.want)
			}
		})
	}
}

type failingCloser struct{ err error }

func (f failingCloser) Close() error { return f.err }

func TestCloseAll(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	err := closeAll([]io.Closer{failingCloser{errA}, failingCloser{nil}, failingCloser{errB}})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("closeAll() = %v, want both errors joined", err)
	}
	if err := closeAll(nil); err != nil {
		t.Errorf("closeAll(nil) = %v", err)
	}
}

func TestOrchestratorConfig(t *testing.T) {
	p := &config.PipelineConfig{
		Concurrency:    3,
		ExcludeRated:   true,
		WriteRateLimit: 50,
	}
	got := orchestratorConfig(p)
	def := recommend.DefaultConfig()
	if got.Concurrency != 3 || !got.ExcludeRated || got.WriteRateLimit != 50 {
		t.Errorf("orchestratorConfig() = %+v", got)
	}
	if got.ScoreTimeout != def.ScoreTimeout || got.WriteTimeout != def.WriteTimeout {
		t.Error("zero timeouts should keep the defaults")
	}
}

func TestBreakerConfig(t *testing.T) {
	got := breakerConfig(&config.StoreConfig{FailureThreshold: 7, Timeout: time.Second})
	def := recommend.DefaultBreakerConfig()
	if got.ConsecutiveFailures != 7 || got.Timeout != time.Second {
		t.Errorf("breakerConfig() = %+v", got)
	}
	if got.MaxRequests != def.MaxRequests || got.Interval != def.Interval {
		t.Error("zero fields should keep the defaults")
	}
}
