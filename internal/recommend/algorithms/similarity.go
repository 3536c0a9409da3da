// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package algorithms

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"github.com/tomtom215/recsys/internal/logging"
	"github.com/tomtom215/recsys/internal/metrics"
	"github.com/tomtom215/recsys/internal/recommend"
	"github.com/tomtom215/recsys/internal/recommend/storage"
)

// DefaultBatchSize is the number of texts per embedder call.
const DefaultBatchSize = 32

// SimilarityOptions configures index construction.
type SimilarityOptions struct {
	// BatchSize is the number of texts per embedder call.
	BatchSize int

	// Streaming spills vectors to BadgerDB instead of holding them in memory.
	Streaming bool

	// SpillDir is the parent directory of per-run spill stores. Empty uses
	// the system temp directory.
	SpillDir string

	// SpillInMemory runs the spill store on in-memory BadgerDB. Used by tests.
	SpillInMemory bool

	// MemoSize is the number of spilled vectors kept resident in memory.
	MemoSize int

	// Cache, when set, is consulted before the embedder and filled after it.
	Cache *storage.EmbeddingCache
}

// vectorSource is where an index reads vectors from.
type vectorSource interface {
	get(id int64) ([]float64, error)
	scan(ctx context.Context, fn func(id int64, vec []float64) error) error
	close() error
}

// memoryVectors keeps vectors in ascending id order.
type memoryVectors struct {
	ids  []int64
	vecs [][]float64
	idx  map[int64]int
}

func (m *memoryVectors) get(id int64) ([]float64, error) {
	i, ok := m.idx[id]
	if !ok {
		return nil, storage.ErrVectorNotFound
	}
	return m.vecs[i], nil
}

func (m *memoryVectors) scan(ctx context.Context, fn func(id int64, vec []float64) error) error {
	for i, id := range m.ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(id, m.vecs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryVectors) close() error { return nil }

type spillVectors struct {
	store *storage.SpillStore
}

func (s *spillVectors) get(id int64) ([]float64, error) { return s.store.Get(id) }

func (s *spillVectors) scan(ctx context.Context, fn func(id int64, vec []float64) error) error {
	return s.store.Scan(ctx, fn)
}

func (s *spillVectors) close() error {
	stats := s.store.MemoStats()
	logging.Debug().
		Int("vectors", s.store.Len()).
		Int("resident", stats.Resident).
		Int64("memo_hits", stats.Hits).
		Int64("memo_misses", stats.Misses).
		Msg("spill store closing")
	return s.store.Close()
}

// SimilarityIndex answers nearest-neighbour queries over item embeddings.
// It is read-only after BuildIndex returns.
type SimilarityIndex struct {
	vectors vectorSource
	size    int
}

// BuildIndex embeds every item in batches. items must be in ascending id
// order, as returned by recommend.Catalog.Items.
//
//nolint:gocritic // meta passed by value is acceptable for this build operation
func BuildIndex(ctx context.Context, embedder embedding.Embedder, meta EmbedderMeta, items []recommend.Item, opts SimilarityOptions) (*SimilarityIndex, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var (
		mem   *memoryVectors
		spill *storage.SpillStore
		err   error
	)
	if opts.Streaming {
		spill, err = storage.OpenSpillStore(storage.Options{
			Dir:      opts.SpillDir,
			InMemory: opts.SpillInMemory,
		}, opts.MemoSize)
		if err != nil {
			return nil, fmt.Errorf("open spill store: %w", err)
		}
	} else {
		mem = &memoryVectors{
			ids:  make([]int64, 0, len(items)),
			vecs: make([][]float64, 0, len(items)),
			idx:  make(map[int64]int, len(items)),
		}
	}

	fail := func(err error) (*SimilarityIndex, error) {
		if spill != nil {
			_ = spill.Close()
		}
		return nil, err
	}

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		vecs, err := embedBatch(ctx, embedder, meta, batch, opts.Cache)
		if err != nil {
			return fail(fmt.Errorf("embed items %d-%d: %w", batch[0].ID, batch[len(batch)-1].ID, err))
		}

		ids := make([]int64, len(batch))
		for i, it := range batch {
			ids[i] = it.ID
		}

		if spill != nil {
			if err := spill.PutBatch(ids, vecs); err != nil {
				return fail(err)
			}
			continue
		}
		for i, id := range ids {
			if _, dup := mem.idx[id]; dup {
				return fail(fmt.Errorf("duplicate item id %d", id))
			}
			mem.idx[id] = len(mem.ids)
			mem.ids = append(mem.ids, id)
			mem.vecs = append(mem.vecs, vecs[i])
		}
	}

	idx := &SimilarityIndex{size: len(items)}
	if spill != nil {
		idx.vectors = &spillVectors{store: spill}
	} else {
		idx.vectors = mem
	}
	return idx, nil
}

// embedBatch returns one vector per item. Empty texts are never sent to the
// embedder and get an empty vector, which scores 0 against everything.
//
//nolint:gocritic // meta passed by value is acceptable
func embedBatch(ctx context.Context, embedder embedding.Embedder, meta EmbedderMeta, batch []recommend.Item, cache *storage.EmbeddingCache) ([][]float64, error) {
	out := make([][]float64, len(batch))

	var keys [][]byte
	if cache != nil {
		keys = make([][]byte, len(batch))
		for i, it := range batch {
			keys[i] = storage.CacheKey(meta.Provider, meta.Model, meta.Dim, it.Text())
		}
		cached, err := cache.GetMany(keys)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("embedding cache read failed; embedding batch")
		} else {
			copy(out, cached)
		}
	}

	var (
		missIdx   []int
		missTexts []string
	)
	for i, it := range batch {
		if out[i] != nil {
			continue
		}
		text := it.Text()
		if text == "" {
			out[i] = []float64{}
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := embedder.EmbedStrings(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		if meta.Dim > 0 && len(vecs[j]) != meta.Dim {
			return nil, fmt.Errorf("embedder returned %d dimensions for item %d, want %d", len(vecs[j]), batch[i].ID, meta.Dim)
		}
		out[i] = vecs[j]
	}

	if cache != nil {
		putKeys := make([][]byte, len(missIdx))
		for j, i := range missIdx {
			putKeys[j] = keys[i]
		}
		if err := cache.PutMany(putKeys, vecs); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("embedding cache write failed")
		}
	}
	return out, nil
}

// Len returns the number of indexed items.
func (s *SimilarityIndex) Len() int {
	return s.size
}

// Vector returns the embedding of an item.
func (s *SimilarityIndex) Vector(itemID int64) ([]float64, error) {
	vec, err := s.vectors.get(itemID)
	if errors.Is(err, storage.ErrVectorNotFound) {
		return nil, &recommend.NotFoundError{Kind: recommend.TargetItem, ID: itemID}
	}
	return vec, err
}

// TopKSimilar returns up to k other items ranked by cosine similarity to
// itemID, best first, ties broken by ascending item id. When k exceeds the
// number of other items all of them are returned.
func (s *SimilarityIndex) TopKSimilar(ctx context.Context, itemID int64, k int) ([]recommend.ScoredItem, error) {
	query, err := s.Vector(itemID)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		return []recommend.ScoredItem{}, nil
	}

	top := newTopK(k)
	err = s.vectors.scan(ctx, func(id int64, vec []float64) error {
		if id == itemID {
			return nil
		}
		top.offer(recommend.ScoredItem{ItemID: id, Score: CosineSimilarity(query, vec)})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan vectors: %w", err)
	}
	return top.result(), nil
}

// Close releases the vector source.
func (s *SimilarityIndex) Close() error {
	return s.vectors.close()
}

// scoredHeap is a min-heap whose root is the lowest-ranked entry.
type scoredHeap []recommend.ScoredItem

func (h scoredHeap) Len() int           { return len(h) }
func (h scoredHeap) Less(i, j int) bool { return recommend.Ranks(h[j], h[i]) }
func (h scoredHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *scoredHeap) Push(x any) { *h = append(*h, x.(recommend.ScoredItem)) }

func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// topK keeps the k best-ranked entries offered to it. The result depends
// only on the set of offers, never on their order.
type topK struct {
	k int
	h scoredHeap
}

func newTopK(k int) *topK {
	return &topK{k: k, h: make(scoredHeap, 0, k)}
}

func (t *topK) offer(s recommend.ScoredItem) {
	if len(t.h) < t.k {
		heap.Push(&t.h, s)
		return
	}
	if recommend.Ranks(s, t.h[0]) {
		t.h[0] = s
		heap.Fix(&t.h, 0)
	}
}

func (t *topK) result() []recommend.ScoredItem {
	out := append([]recommend.ScoredItem(nil), t.h...)
	recommend.SortScored(out)
	return out
}

// SimilarityModel is the item_similarity model.
type SimilarityModel struct {
	BaseModel

	embedder embedding.Embedder
	meta     EmbedderMeta
	opts     SimilarityOptions

	index *SimilarityIndex
}

// NewSimilarityModel creates the item_similarity model.
//
//nolint:gocritic // meta and opts passed by value are acceptable at construction
func NewSimilarityModel(embedder embedding.Embedder, meta EmbedderMeta, opts SimilarityOptions) *SimilarityModel {
	return &SimilarityModel{
		BaseModel: NewBaseModel(ModelItemSimilarity, recommend.KindSimilarity, recommend.TargetItem),
		embedder:  embedder,
		meta:      meta,
		opts:      opts,
	}
}

// Prepare embeds the catalog. A previous run's index is released.
func (m *SimilarityModel) Prepare(ctx context.Context, catalog *recommend.Catalog, _ recommend.RunParams) error {
	m.acquirePrepareLock()
	defer m.releasePrepareLock()

	start := time.Now()
	idx, err := BuildIndex(ctx, m.embedder, m.meta, catalog.Items(), m.opts)
	if err != nil {
		return err
	}
	if m.index != nil {
		if cerr := m.index.Close(); cerr != nil {
			logging.Ctx(ctx).Warn().Err(cerr).Msg("failed to release previous similarity index")
		}
	}
	m.index = idx
	m.markPrepared()

	mode := "memory"
	if m.opts.Streaming {
		mode = "streaming"
	}
	elapsed := time.Since(start)
	metrics.RecordEmbeddingBuild(m.meta.Provider, mode, elapsed)

	logging.Ctx(ctx).Info().
		Str("model", m.Name()).
		Str("provider", m.meta.Provider).
		Str("mode", mode).
		Int("items", idx.Len()).
		Dur("duration", elapsed).
		Msg("similarity index built")
	return nil
}

// Score returns the topN items most similar to the target item.
func (m *SimilarityModel) Score(ctx context.Context, targetID int64, topN int) ([]recommend.ScoredItem, error) {
	m.acquireScoreLock()
	defer m.releaseScoreLock()

	if m.index == nil {
		return nil, fmt.Errorf("%s: model not prepared", m.Name())
	}
	return m.index.TopKSimilar(ctx, targetID, topN)
}

// Close releases the current index.
func (m *SimilarityModel) Close() error {
	m.acquirePrepareLock()
	defer m.releasePrepareLock()
	if m.index == nil {
		return nil
	}
	err := m.index.Close()
	m.index = nil
	return err
}
