// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// ErrVectorNotFound is returned when no vector is stored for a key.
var ErrVectorNotFound = errors.New("vector not found")

// ErrStoreClosed is returned after Close.
var ErrStoreClosed = errors.New("vector store closed")

// Options configures a BadgerDB instance.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every write. Spilled vectors are disposable, so
	// this is only worth enabling for the persistent cache.
	SyncWrites bool

	// Compression enables Snappy block compression.
	Compression bool
}

func openBadger(opts Options) (*badger.DB, error) {
	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Dir == "" {
			return nil, fmt.Errorf("badger directory is required")
		}
		if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory: %w", err)
		}
		bo = badger.DefaultOptions(opts.Dir)
	}
	bo.SyncWrites = opts.SyncWrites
	if opts.Compression {
		bo.Compression = options.Snappy
	}

	// Reduce logging verbosity
	bo.Logger = nil

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return db, nil
}

// EncodeVector serialises vec as little-endian float64 bits.
func EncodeVector(vec []float64) []byte {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector. The result never aliases b.
func DecodeVector(b []byte) ([]float64, error) {
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("decode vector: length %d is not a multiple of 8", len(b))
	}
	vec := make([]float64, len(b)/8)
	for i := range vec {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return vec, nil
}

// idKey maps an id to a key whose byte order matches numeric order.
func idKey(prefix []byte, id int64) []byte {
	k := make([]byte, len(prefix)+8)
	copy(k, prefix)
	binary.BigEndian.PutUint64(k[len(prefix):], uint64(id)^(1<<63)) //nolint:gosec // sign flip is intentional
	return k
}

// keyID is the inverse of idKey.
func keyID(prefix, key []byte) (int64, error) {
	if len(key) != len(prefix)+8 {
		return 0, fmt.Errorf("malformed key of length %d", len(key))
	}
	return int64(binary.BigEndian.Uint64(key[len(prefix):]) ^ (1 << 63)), nil //nolint:gosec // sign flip is intentional
}
