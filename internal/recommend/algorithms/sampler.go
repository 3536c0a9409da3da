// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package algorithms

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/rand/v2"

	"github.com/tomtom215/recsys/internal/logging"
	"github.com/tomtom215/recsys/internal/recommend"
)

// SubSeed derives the per-target PCG seed from the run seed and target id.
// The derivation is fixed so that a given (seed, target) pair yields the same
// sample in every process and on every platform.
func SubSeed(seed, targetID int64) (uint64, uint64) {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(seed))      //nolint:gosec // bit reinterpretation
	binary.LittleEndian.PutUint64(buf[8:16], uint64(targetID)) //nolint:gosec // bit reinterpretation
	sum := sha256.Sum256(buf[:])
	return binary.LittleEndian.Uint64(sum[0:8]), binary.LittleEndian.Uint64(sum[8:16])
}

// Sample draws n distinct items from pool without replacement. pool must be
// in a deterministic order (ascending id); it is not modified. Scores are
// strictly decreasing placeholders (n-i)/n that only carry rank order.
func Sample(seed, targetID int64, pool []int64, n int) ([]recommend.ScoredItem, error) {
	if n > len(pool) {
		return nil, &recommend.InsufficientCatalogError{Requested: n, Available: len(pool)}
	}
	if n <= 0 {
		return []recommend.ScoredItem{}, nil
	}

	s1, s2 := SubSeed(seed, targetID)
	rng := rand.New(rand.NewPCG(s1, s2)) //nolint:gosec // deterministic sampling, not security

	work := append([]int64(nil), pool...)
	out := make([]recommend.ScoredItem, n)
	for i := 0; i < n; i++ {
		// Partial Fisher-Yates over the raw PCG stream.
		remaining := uint64(len(work) - i)
		j := i + int(rng.Uint64()%remaining)
		work[i], work[j] = work[j], work[i]
		out[i] = recommend.ScoredItem{
			ItemID: work[i],
			Score:  float64(n-i) / float64(n),
		}
	}
	return out, nil
}

// SamplingModel is a seeded random baseline for users ("random") or for
// items ("random_item").
type SamplingModel struct {
	BaseModel

	seed    int64
	catalog *recommend.Catalog
	items   []int64
	rated   map[int64]map[int64]struct{}
}

// NewSamplingModel creates a sampling model scoring the given target type.
func NewSamplingModel(name string, target recommend.TargetType) *SamplingModel {
	return &SamplingModel{
		BaseModel: NewBaseModel(name, recommend.KindSampling, target),
	}
}

// Prepare captures the run seed, the item pool and, when rated-item
// exclusion is enabled, each user's rated items.
func (m *SamplingModel) Prepare(ctx context.Context, catalog *recommend.Catalog, params recommend.RunParams) error {
	m.acquirePrepareLock()
	defer m.releasePrepareLock()

	m.seed = params.Seed
	m.catalog = catalog
	m.items = catalog.ItemIDs()
	m.rated = nil

	if params.RatedItems != nil && m.Target() == recommend.TargetUser {
		m.rated = make(map[int64]map[int64]struct{}, len(params.RatedItems))
		for userID, items := range params.RatedItems {
			set := make(map[int64]struct{}, len(items))
			for _, id := range items {
				set[id] = struct{}{}
			}
			m.rated[userID] = set
		}
	}
	m.markPrepared()

	logging.Ctx(ctx).Debug().
		Str("model", m.Name()).
		Int64("seed", m.seed).
		Int("pool", len(m.items)).
		Bool("exclude_rated", m.rated != nil).
		Msg("sampling pool ready")
	return nil
}

// Score samples topN items for the target.
func (m *SamplingModel) Score(_ context.Context, targetID int64, topN int) ([]recommend.ScoredItem, error) {
	m.acquireScoreLock()
	defer m.releaseScoreLock()

	if m.catalog == nil {
		return nil, fmt.Errorf("%s: model not prepared", m.Name())
	}

	pool := m.items
	switch m.Target() {
	case recommend.TargetUser:
		if !m.catalog.HasUser(targetID) {
			return nil, &recommend.NotFoundError{Kind: recommend.TargetUser, ID: targetID}
		}
		if excluded := m.rated[targetID]; len(excluded) > 0 {
			pool = filterPool(m.items, func(id int64) bool {
				_, skip := excluded[id]
				return skip
			})
		}
	case recommend.TargetItem:
		if _, ok := m.catalog.Item(targetID); !ok {
			return nil, &recommend.NotFoundError{Kind: recommend.TargetItem, ID: targetID}
		}
		pool = filterPool(m.items, func(id int64) bool { return id == targetID })
	}

	return Sample(m.seed, targetID, pool, topN)
}

// filterPool returns the ids of pool for which skip is false, keeping order.
func filterPool(pool []int64, skip func(int64) bool) []int64 {
	out := make([]int64, 0, len(pool))
	for _, id := range pool {
		if !skip(id) {
			out = append(out, id)
		}
	}
	return out
}
