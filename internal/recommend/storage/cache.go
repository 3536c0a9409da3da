// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/recsys/internal/metrics"
)

const cachePrefix = "e:"

// EmbeddingCache is a persistent content-addressed embedding cache.
type EmbeddingCache struct {
	db  *badger.DB
	ttl time.Duration

	mu     sync.RWMutex
	closed bool
}

// OpenEmbeddingCache opens the cache. A zero ttl keeps entries forever.
func OpenEmbeddingCache(opts Options, ttl time.Duration) (*EmbeddingCache, error) {
	db, err := openBadger(opts)
	if err != nil {
		return nil, err
	}
	return &EmbeddingCache{db: db, ttl: ttl}, nil
}

// CacheKey derives the key for one embedding. Every input that changes the
// resulting vector is part of the hash.
func CacheKey(provider, model string, dimensions int, text string) []byte {
	h := sha256.New()
	h.Write([]byte(provider))
	h.Write([]byte{0})
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(dimensions)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return []byte(cachePrefix + hex.EncodeToString(h.Sum(nil)))
}

// GetMany looks up keys. The result is parallel to keys with nil for misses.
func (c *EmbeddingCache) GetMany(keys [][]byte) ([][]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrStoreClosed
	}

	out := make([][]float64, len(keys))
	err := c.db.View(func(txn *badger.Txn) error {
		for i, key := range keys {
			item, err := txn.Get(key)
			if errors.Is(err, badger.ErrKeyNotFound) {
				metrics.RecordEmbeddingCache(false)
				continue
			}
			if err != nil {
				return err
			}
			if err := item.Value(func(val []byte) error {
				vec, derr := DecodeVector(val)
				out[i] = vec
				return derr
			}); err != nil {
				return err
			}
			metrics.RecordEmbeddingCache(true)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read embedding cache: %w", err)
	}
	return out, nil
}

// PutMany stores vectors under keys.
func (c *EmbeddingCache) PutMany(keys [][]byte, vecs [][]float64) error {
	if len(keys) != len(vecs) {
		return fmt.Errorf("cache put: %d keys for %d vectors", len(keys), len(vecs))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrStoreClosed
	}

	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for i, key := range keys {
		e := badger.NewEntry(key, EncodeVector(vecs[i]))
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		if err := wb.SetEntry(e); err != nil {
			return fmt.Errorf("cache vector: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush embedding cache: %w", err)
	}
	return nil
}

// RunGC reclaims value log space. badger.ErrNoRewrite is not an error.
func (c *EmbeddingCache) RunGC(discardRatio float64) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrStoreClosed
	}
	err := c.db.RunValueLogGC(discardRatio)
	if err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		return fmt.Errorf("embedding cache gc: %w", err)
	}
	return nil
}

// Close closes the cache.
func (c *EmbeddingCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.db.Close()
}
