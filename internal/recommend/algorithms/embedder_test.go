// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package algorithms

import (
	"context"
	"math"
	"testing"
)

func embedOne(t *testing.T, e *HashingEmbedder, text string) []float64 {
	t.Helper()
	vecs, err := e.EmbedStrings(context.Background(), []string{text})
	if err != nil {
		t.Fatalf("EmbedStrings() error = %v", err)
	}
	return vecs[0]
}

func TestHashingEmbedder_Dimensions(t *testing.T) {
	if got := NewHashingEmbedder(0).Dimensions(); got != DefaultDimensions {
		t.Errorf("Dimensions() = %d, want %d", got, DefaultDimensions)
	}
	e := NewHashingEmbedder(64)
	if got := len(embedOne(t, e, "recommender systems")); got != 64 {
		t.Errorf("len(vector) = %d, want 64", got)
	}
}

func TestHashingEmbedder_Deterministic(t *testing.T) {
	a := embedOne(t, NewHashingEmbedder(128), "Neural Networks")
	b := embedOne(t, NewHashingEmbedder(128), "neural   networks!")
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			t.Fatalf("component %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestHashingEmbedder_Normalized(t *testing.T) {
	vec := embedOne(t, NewHashingEmbedder(0), "Transformers are attention based sequence models")
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Errorf("squared norm = %v, want 1", sum)
	}
}

func TestHashingEmbedder_EmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "!?."} {
		vec := embedOne(t, NewHashingEmbedder(32), text)
		for i, v := range vec {
			if v != 0 {
				t.Fatalf("text %q component %d = %v, want 0", text, i, v)
			}
		}
	}
}

func TestHashingEmbedder_RelatedTextsAreCloser(t *testing.T) {
	e := NewHashingEmbedder(0)
	a := embedOne(t, e, "neural networks for image classification")
	b := embedOne(t, e, "neural networks for language modelling")
	c := embedOne(t, e, "baking sourdough bread at home")

	related := CosineSimilarity(a, b)
	unrelated := CosineSimilarity(a, c)
	if related <= unrelated {
		t.Errorf("related similarity %v should exceed unrelated %v", related, unrelated)
	}
}

func TestHashingEmbedder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashingEmbedder(8).EmbedStrings(ctx, []string{"a"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestNewEmbedder(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_EMBED_MODEL", "")

	tests := []struct {
		name     string
		cfg      EmbedderConfig
		wantErr  bool
		provider string
		dim      int
	}{
		{"default is hashing", EmbedderConfig{}, false, ProviderHashing, DefaultDimensions},
		{"hashing with dims", EmbedderConfig{Provider: "Hashing", Dimensions: 64}, false, ProviderHashing, 64},
		{"openai without key", EmbedderConfig{Provider: "openai", Model: "text-embedding-3-small"}, true, "", 0},
		{"unknown provider", EmbedderConfig{Provider: "word2vec"}, true, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			em, meta, err := NewEmbedder(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewEmbedder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if em == nil {
				t.Fatal("NewEmbedder() returned nil embedder")
			}
			if meta.Provider != tt.provider || meta.Dim != tt.dim {
				t.Errorf("meta = %+v, want provider %s dim %d", meta, tt.provider, tt.dim)
			}
		})
	}
}
