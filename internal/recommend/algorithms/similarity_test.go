// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package algorithms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/tomtom215/recsys/internal/recommend"
	"github.com/tomtom215/recsys/internal/recommend/storage"
)

var testWords = []string{
	"neural", "networks", "recommender", "systems", "transformers", "attention",
	"graph", "learning", "deep", "vision", "language", "retrieval",
}

// generatedItems builds n items with overlapping vocabularies.
func generatedItems(n int) []recommend.Item {
	items := make([]recommend.Item, n)
	for i := range items {
		w := len(testWords)
		items[i] = recommend.Item{
			ID:          int64(i + 1),
			Title:       fmt.Sprintf("%s %s", testWords[i%w], testWords[(i*7+3)%w]),
			Description: testWords[(i*5+1)%w],
		}
	}
	return items
}

func buildTestIndex(t *testing.T, items []recommend.Item, opts SimilarityOptions) *SimilarityIndex {
	t.Helper()
	e := NewHashingEmbedder(64)
	meta := EmbedderMeta{Provider: ProviderHashing, Model: "test", Dim: 64}
	idx, err := BuildIndex(context.Background(), e, meta, items, opts)
	if err != nil {
		t.Fatalf("BuildIndex() error = %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0},
		{"length mismatch", []float64{1}, []float64{1, 1}, 0},
		{"empty", nil, nil, 0},
		{"nan", []float64{math.NaN(), 1}, []float64{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCosineSimilarity_SymmetricAndBounded(t *testing.T) {
	e := NewHashingEmbedder(32)
	texts := []string{"neural networks", "graph learning", "deep vision models", "", "language retrieval"}
	vecs, err := e.EmbedStrings(context.Background(), texts)
	if err != nil {
		t.Fatal(err)
	}
	for i := range vecs {
		for j := range vecs {
			ab := CosineSimilarity(vecs[i], vecs[j])
			ba := CosineSimilarity(vecs[j], vecs[i])
			if math.Float64bits(ab) != math.Float64bits(ba) {
				t.Errorf("sim(%d,%d)=%v != sim(%d,%d)=%v", i, j, ab, j, i, ba)
			}
			if ab < -1 || ab > 1 {
				t.Errorf("sim(%d,%d)=%v out of range", i, j, ab)
			}
		}
	}
}

func TestTopKSimilar_Properties(t *testing.T) {
	items := generatedItems(40)
	idx := buildTestIndex(t, items, SimilarityOptions{BatchSize: 7})

	for _, k := range []int{1, 5, 39, 100} {
		for _, it := range items {
			got, err := idx.TopKSimilar(context.Background(), it.ID, k)
			if err != nil {
				t.Fatalf("TopKSimilar(%d, %d) error = %v", it.ID, k, err)
			}
			want := k
			if want > len(items)-1 {
				want = len(items) - 1
			}
			if len(got) != want {
				t.Errorf("TopKSimilar(%d, %d) len = %d, want %d", it.ID, k, len(got), want)
			}
			seen := make(map[int64]bool)
			for i, s := range got {
				if s.ItemID == it.ID {
					t.Errorf("TopKSimilar(%d) contains the query item", it.ID)
				}
				if seen[s.ItemID] {
					t.Errorf("TopKSimilar(%d) duplicate item %d", it.ID, s.ItemID)
				}
				seen[s.ItemID] = true
				if i > 0 && recommend.Ranks(s, got[i-1]) {
					t.Errorf("TopKSimilar(%d) not ordered at %d", it.ID, i)
				}
			}
		}
	}
}

func TestTopKSimilar_MatchesFullSort(t *testing.T) {
	items := generatedItems(25)
	idx := buildTestIndex(t, items, SimilarityOptions{})

	query := items[4].ID
	qvec, err := idx.Vector(query)
	if err != nil {
		t.Fatal(err)
	}
	var all []recommend.ScoredItem
	for _, it := range items {
		if it.ID == query {
			continue
		}
		vec, _ := idx.Vector(it.ID)
		all = append(all, recommend.ScoredItem{ItemID: it.ID, Score: CosineSimilarity(qvec, vec)})
	}
	recommend.SortScored(all)

	got, err := idx.TopKSimilar(context.Background(), query, 6)
	if err != nil {
		t.Fatal(err)
	}
	for i := range got {
		if got[i] != all[i] {
			t.Errorf("position %d = %+v, want %+v", i, got[i], all[i])
		}
	}
}

func TestTopKSimilar_ThreeItemScenario(t *testing.T) {
	items := []recommend.Item{
		{ID: 1, Title: "Neural Networks"},
		{ID: 2, Title: "Recommender Systems"},
		{ID: 3, Title: "Transformers"},
	}
	idx := buildTestIndex(t, items, SimilarityOptions{})

	got, err := idx.TopKSimilar(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("TopKSimilar() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	ids := map[int64]bool{got[0].ItemID: true, got[1].ItemID: true}
	if !ids[2] || !ids[3] {
		t.Errorf("TopKSimilar(1, 2) = %+v, want items 2 and 3", got)
	}
	if recommend.Ranks(got[1], got[0]) {
		t.Errorf("TopKSimilar(1, 2) not ordered: %+v", got)
	}
}

func TestTopKSimilar_UnknownItem(t *testing.T) {
	idx := buildTestIndex(t, generatedItems(3), SimilarityOptions{})
	_, err := idx.TopKSimilar(context.Background(), 99, 2)
	var nf *recommend.NotFoundError
	if !errors.As(err, &nf) || nf.ID != 99 {
		t.Errorf("TopKSimilar(99) error = %v, want *NotFoundError", err)
	}
}

func TestTopKSimilar_ZeroK(t *testing.T) {
	idx := buildTestIndex(t, generatedItems(3), SimilarityOptions{})
	got, err := idx.TopKSimilar(context.Background(), 1, 0)
	if err != nil || len(got) != 0 {
		t.Errorf("TopKSimilar(1, 0) = %v, %v", got, err)
	}
}

func TestTopKSimilar_EmptyText(t *testing.T) {
	items := []recommend.Item{
		{ID: 1, Title: "graph learning"},
		{ID: 2},
		{ID: 3, Title: "graph neural networks"},
	}
	idx := buildTestIndex(t, items, SimilarityOptions{})

	got, err := idx.TopKSimilar(context.Background(), 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range got {
		if s.Score != 0 {
			t.Errorf("empty item similarity to %d = %v, want 0", s.ItemID, s.Score)
		}
	}
	if len(got) != 2 || got[0].ItemID != 1 || got[1].ItemID != 3 {
		t.Errorf("ties should break by ascending id, got %+v", got)
	}

	got, err = idx.TopKSimilar(context.Background(), 1, 5)
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range got {
		if s.ItemID == 2 && s.Score != 0 {
			t.Errorf("similarity to empty item = %v, want 0", s.Score)
		}
	}
}

func TestBuildIndex_StreamingMatchesMemory(t *testing.T) {
	items := generatedItems(50)
	mem := buildTestIndex(t, items, SimilarityOptions{BatchSize: 8})
	spill := buildTestIndex(t, items, SimilarityOptions{
		BatchSize:     8,
		Streaming:     true,
		SpillInMemory: true,
		MemoSize:      4,
	})

	for _, it := range items {
		a, err := mem.TopKSimilar(context.Background(), it.ID, 10)
		if err != nil {
			t.Fatal(err)
		}
		b, err := spill.TopKSimilar(context.Background(), it.ID, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(a) != len(b) {
			t.Fatalf("item %d: len %d vs %d", it.ID, len(a), len(b))
		}
		for i := range a {
			if a[i].ItemID != b[i].ItemID || math.Float64bits(a[i].Score) != math.Float64bits(b[i].Score) {
				t.Errorf("item %d position %d: memory %+v, streaming %+v", it.ID, i, a[i], b[i])
			}
		}
	}
}

func TestBuildIndex_StreamingOnDisk(t *testing.T) {
	items := generatedItems(5)
	idx := buildTestIndex(t, items, SimilarityOptions{Streaming: true, SpillDir: t.TempDir()})
	if idx.Len() != 5 {
		t.Errorf("Len() = %d, want 5", idx.Len())
	}
	got, err := idx.TopKSimilar(context.Background(), 1, 2)
	if err != nil || len(got) != 2 {
		t.Errorf("TopKSimilar() = %v, %v", got, err)
	}
}

// countingEmbedder counts texts it embeds and can be made to fail.
type countingEmbedder struct {
	inner *HashingEmbedder
	texts int64
	fail  bool
}

func (c *countingEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if c.fail {
		return nil, errors.New("embedder unavailable")
	}
	atomic.AddInt64(&c.texts, int64(len(texts)))
	return c.inner.EmbedStrings(ctx, texts, opts...)
}

func TestBuildIndex_UsesEmbeddingCache(t *testing.T) {
	cache, err := storage.OpenEmbeddingCache(storage.Options{InMemory: true}, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer cache.Close()

	items := generatedItems(10)
	items[3].Title, items[3].Description = "", ""
	meta := EmbedderMeta{Provider: ProviderHashing, Model: "test", Dim: 16}
	emb := &countingEmbedder{inner: NewHashingEmbedder(16)}

	first, err := BuildIndex(context.Background(), emb, meta, items, SimilarityOptions{BatchSize: 4, Cache: cache})
	if err != nil {
		t.Fatalf("first BuildIndex() error = %v", err)
	}
	defer first.Close()
	if emb.texts != 9 {
		t.Errorf("embedded %d texts, want 9 (empty text skipped)", emb.texts)
	}

	emb.fail = true
	second, err := BuildIndex(context.Background(), emb, meta, items, SimilarityOptions{BatchSize: 4, Cache: cache})
	if err != nil {
		t.Fatalf("second BuildIndex() should be served from cache: %v", err)
	}
	defer second.Close()

	for _, it := range items {
		a, _ := first.Vector(it.ID)
		b, _ := second.Vector(it.ID)
		if len(a) != len(b) {
			t.Fatalf("item %d vector length %d vs %d", it.ID, len(a), len(b))
		}
		for i := range a {
			if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
				t.Fatalf("item %d cached vector differs", it.ID)
			}
		}
	}
}

func TestBuildIndex_EmbedderError(t *testing.T) {
	emb := &countingEmbedder{inner: NewHashingEmbedder(8), fail: true}
	_, err := BuildIndex(context.Background(), emb, EmbedderMeta{Dim: 8}, generatedItems(3), SimilarityOptions{})
	if err == nil {
		t.Error("expected embedder error")
	}
}

func TestBuildIndex_DimensionMismatch(t *testing.T) {
	emb := NewHashingEmbedder(8)
	_, err := BuildIndex(context.Background(), emb, EmbedderMeta{Dim: 16}, generatedItems(3), SimilarityOptions{})
	if err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestSimilarityModel(t *testing.T) {
	catalog, err := recommend.NewCatalog(generatedItems(8), nil)
	if err != nil {
		t.Fatal(err)
	}
	m := NewSimilarityModel(NewHashingEmbedder(32), EmbedderMeta{Provider: ProviderHashing, Model: "test", Dim: 32}, SimilarityOptions{})
	defer m.Close()

	if m.Name() != ModelItemSimilarity || m.Kind() != recommend.KindSimilarity || m.Target() != recommend.TargetItem {
		t.Errorf("descriptor = %s/%s/%s", m.Name(), m.Kind(), m.Target())
	}
	if _, err := m.Score(context.Background(), 1, 3); err == nil {
		t.Error("Score() before Prepare should fail")
	}

	for i := 0; i < 2; i++ {
		if err := m.Prepare(context.Background(), catalog, recommend.RunParams{}); err != nil {
			t.Fatalf("Prepare() error = %v", err)
		}
	}
	if !m.IsPrepared() || m.Version() != 2 {
		t.Errorf("IsPrepared() = %v, Version() = %d", m.IsPrepared(), m.Version())
	}

	got, err := m.Score(context.Background(), 1, 3)
	if err != nil || len(got) != 3 {
		t.Errorf("Score() = %v, %v", got, err)
	}
}
