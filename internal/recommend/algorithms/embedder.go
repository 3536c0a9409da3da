// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package algorithms

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"time"
	"unicode"

	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
)

// Embedding providers.
const (
	ProviderHashing = "hashing"
	ProviderOpenAI  = "openai"
)

// DefaultDimensions is the hashing embedder's vector length.
const DefaultDimensions = 384

// Feature weights of the hashing embedder.
const (
	weightWord    = 1.0
	weightBigram  = 0.5
	weightTrigram = 0.25
)

// HashingEmbedder is a deterministic local text embedder. Lowercased word
// unigrams, word bigrams and character trigrams are hashed with FNV-1a into
// a signed fixed-length vector which is then L2-normalised.
//
// Identical text always yields bit-identical vectors across processes and
// platforms. Empty text yields the zero vector.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder creates a hashing embedder. dim <= 0 uses DefaultDimensions.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultDimensions
	}
	return &HashingEmbedder{dim: dim}
}

// Dimensions returns the vector length.
func (h *HashingEmbedder) Dimensions() int {
	return h.dim
}

// EmbedStrings embeds each text.
func (h *HashingEmbedder) EmbedStrings(ctx context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = h.embed(text)
	}
	return out, nil
}

func (h *HashingEmbedder) embed(text string) []float64 {
	vec := make([]float64, h.dim)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec
	}

	for i, tok := range tokens {
		h.add(vec, "w:"+tok, weightWord)
		if i > 0 {
			h.add(vec, "b:"+tokens[i-1]+" "+tok, weightBigram)
		}
		padded := []rune("#" + tok + "#")
		for j := 0; j+3 <= len(padded); j++ {
			h.add(vec, "c:"+string(padded[j:j+3]), weightTrigram)
		}
	}

	normalize(vec)
	return vec
}

// add hashes feature into vec. The top bit of the hash picks the sign so
// that collisions cancel in expectation.
func (h *HashingEmbedder) add(vec []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()

	idx := int(sum % uint64(h.dim)) //nolint:gosec // dim is positive and small
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[idx] += weight
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Provider   string
	Dimensions int
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
}

// EmbedderMeta describes a constructed embedder. Provider, Model and Dim
// are part of every embedding cache key.
type EmbedderMeta struct {
	Provider string
	Model    string
	Dim      int
}

// NewEmbedder builds the configured embedder.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (embedding.Embedder, EmbedderMeta, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	model := strings.TrimSpace(cfg.Model)
	dim := cfg.Dimensions

	switch provider {
	case "", ProviderHashing:
		h := NewHashingEmbedder(dim)
		return h, EmbedderMeta{Provider: ProviderHashing, Model: "fnv1a-ngram", Dim: h.Dimensions()}, nil

	case ProviderOpenAI:
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
		if model == "" {
			model = strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
		}
		baseURL := strings.TrimSpace(cfg.BaseURL)
		if baseURL == "" {
			baseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
		}
		if apiKey == "" || model == "" {
			return nil, EmbedderMeta{}, fmt.Errorf("openai embedding missing api key or model")
		}

		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}

		ecfg := &openaiembed.EmbeddingConfig{
			APIKey:  apiKey,
			Model:   model,
			BaseURL: baseURL,
			Timeout: timeout,
		}
		if dim > 0 {
			localDim := dim
			ecfg.Dimensions = &localDim
		}
		em, err := openaiembed.NewEmbedder(ctx, ecfg)
		if err != nil {
			return nil, EmbedderMeta{}, fmt.Errorf("create openai embedder: %w", err)
		}
		return em, EmbedderMeta{Provider: ProviderOpenAI, Model: model, Dim: dim}, nil

	default:
		return nil, EmbedderMeta{}, fmt.Errorf("unknown embedding provider: %s", provider)
	}
}

var _ embedding.Embedder = (*HashingEmbedder)(nil)
