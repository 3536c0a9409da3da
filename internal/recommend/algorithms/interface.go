// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package algorithms

import (
	"math"
	"sync"
	"time"

	"github.com/tomtom215/recsys/internal/recommend"
)

// Registry names of the built-in models.
const (
	ModelItemSimilarity = "item_similarity"
	ModelRandom         = "random"
	ModelRandomItem     = "random_item"
)

// BaseModel provides the descriptor and lifecycle state shared by models.
type BaseModel struct {
	name   string
	kind   recommend.ModelKind
	target recommend.TargetType

	prepared       bool
	version        int
	lastPreparedAt time.Time
	mu             sync.RWMutex
}

// NewBaseModel creates a base model descriptor.
func NewBaseModel(name string, kind recommend.ModelKind, target recommend.TargetType) BaseModel {
	return BaseModel{
		name:   name,
		kind:   kind,
		target: target,
	}
}

// Name returns the registry key.
func (b *BaseModel) Name() string {
	return b.name
}

// Kind returns the scoring variant.
func (b *BaseModel) Kind() recommend.ModelKind {
	return b.kind
}

// Target returns the entity type scored.
func (b *BaseModel) Target() recommend.TargetType {
	return b.target
}

// IsPrepared returns whether Prepare has completed successfully.
func (b *BaseModel) IsPrepared() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.prepared
}

// Version counts successful Prepare calls.
func (b *BaseModel) Version() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// LastPreparedAt returns when Prepare last succeeded.
func (b *BaseModel) LastPreparedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastPreparedAt
}

// markPrepared must be called while holding the prepare lock.
func (b *BaseModel) markPrepared() {
	b.prepared = true
	b.version++
	b.lastPreparedAt = time.Now()
}

func (b *BaseModel) acquirePrepareLock() {
	b.mu.Lock()
}

func (b *BaseModel) releasePrepareLock() {
	b.mu.Unlock()
}

func (b *BaseModel) acquireScoreLock() {
	b.mu.RLock()
}

func (b *BaseModel) releaseScoreLock() {
	b.mu.RUnlock()
}

// CosineSimilarity computes cosine similarity clamped to [-1, 1]. Vectors of
// different length, zero vectors and non-finite results score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	switch {
	case math.IsNaN(sim):
		return 0
	case sim > 1:
		return 1
	case sim < -1:
		return -1
	}
	return sim
}

// normalize applies L2 normalization in place. Zero vectors are left as is.
func normalize(vec []float64) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += v * v
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i := range vec {
		vec[i] /= norm
	}
}

// Ensure all models implement the interface.
var (
	_ recommend.Model = (*SimilarityModel)(nil)
	_ recommend.Model = (*SamplingModel)(nil)
)
