// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

var spillPrefix = []byte("v:")

// DefaultMemoSize is the number of vectors kept resident in memory.
const DefaultMemoSize = 1024

// MemoStats reports how often reads were served from resident vectors.
type MemoStats struct {
	Resident int   `json:"resident"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// SpillStore holds item vectors for one run on disk. The first memoSize
// vectors written stay resident in memory for the life of the store, so
// every Scan serves that prefix without touching badger.
type SpillStore struct {
	db      *badger.DB
	memo    *lru.Cache[int64, []float64]
	memoCap int

	hits   atomic.Int64
	misses atomic.Int64

	mu     sync.RWMutex
	count  int
	closed bool

	// tempDir is removed on Close when the store created it.
	tempDir string
}

// OpenSpillStore opens a spill store. When opts.Dir is set a fresh run
// directory is created beneath it; when it is empty and InMemory is false a
// temporary directory is used. Either is removed on Close.
func OpenSpillStore(opts Options, memoSize int) (*SpillStore, error) {
	if memoSize <= 0 {
		memoSize = DefaultMemoSize
	}
	memo, err := lru.New[int64, []float64](memoSize)
	if err != nil {
		return nil, fmt.Errorf("create vector memo: %w", err)
	}

	var tempDir string
	if !opts.InMemory {
		if opts.Dir != "" {
			if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
				return nil, fmt.Errorf("create spill directory: %w", err)
			}
		}
		tempDir, err = os.MkdirTemp(opts.Dir, "recsys-spill-*")
		if err != nil {
			return nil, fmt.Errorf("create spill run directory: %w", err)
		}
		opts.Dir = tempDir
	}

	db, err := openBadger(opts)
	if err != nil {
		if tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
		return nil, err
	}

	return &SpillStore{db: db, memo: memo, memoCap: memoSize, tempDir: tempDir}, nil
}

// PutBatch writes one batch of vectors. ids and vecs are parallel slices.
func (s *SpillStore) PutBatch(ids []int64, vecs [][]float64) error {
	if len(ids) != len(vecs) {
		return fmt.Errorf("put batch: %d ids for %d vectors", len(ids), len(vecs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for i, id := range ids {
		if err := wb.Set(idKey(spillPrefix, id), EncodeVector(vecs[i])); err != nil {
			return fmt.Errorf("spill vector %d: %w", id, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("flush vector batch: %w", err)
	}
	s.count += len(ids)

	// Fill the resident set without evicting, so it is never churned.
	for i, id := range ids {
		if s.memo.Len() >= s.memoCap {
			break
		}
		s.memo.Add(id, append([]float64(nil), vecs[i]...))
	}
	return nil
}

// Get returns the vector for id. The result must not be modified.
func (s *SpillStore) Get(id int64) ([]float64, error) {
	if vec, ok := s.memo.Get(id); ok {
		s.hits.Add(1)
		return vec, nil
	}
	s.misses.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var vec []float64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idKey(spillPrefix, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrVectorNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var derr error
			vec, derr = DecodeVector(val)
			return derr
		})
	})
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// Scan calls fn for every vector in ascending id order. Resident vectors are
// served from memory; only the rest are read and decoded. Returning an error
// from fn stops the scan. fn must not modify vec.
func (s *SpillStore) Scan(ctx context.Context, fn func(id int64, vec []float64) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = s.memo.Len() < s.count
		opts.Prefix = spillPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(spillPrefix); it.ValidForPrefix(spillPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			id, err := keyID(spillPrefix, item.Key())
			if err != nil {
				return err
			}
			if vec, ok := s.memo.Peek(id); ok {
				s.hits.Add(1)
				if err := fn(id, vec); err != nil {
					return err
				}
				continue
			}
			s.misses.Add(1)
			var vec []float64
			if err := item.Value(func(val []byte) error {
				var derr error
				vec, derr = DecodeVector(val)
				return derr
			}); err != nil {
				return fmt.Errorf("read vector %d: %w", id, err)
			}
			if err := fn(id, vec); err != nil {
				return err
			}
		}
		return nil
	})
}

// Len returns the number of vectors written.
func (s *SpillStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// MemoStats returns the resident vector count and hit counters.
func (s *SpillStore) MemoStats() MemoStats {
	return MemoStats{
		Resident: s.memo.Len(),
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
	}
}

// Close closes the database and removes a directory the store created.
func (s *SpillStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.memo.Purge()

	err := s.db.Close()
	if s.tempDir != "" {
		if rerr := os.RemoveAll(s.tempDir); rerr != nil && err == nil {
			err = fmt.Errorf("remove spill directory: %w", rerr)
		}
	}
	return err
}
