// Recsys - Offline Recommendation Generation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recsys

// Package cache provides the TTL response cache used by the read API.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/recsys/internal/metrics"
)

// cleanupInterval is how often expired entries are swept.
const cleanupInterval = time.Minute

// Entry represents a cached item with expiration
type Entry struct {
	Data      any
	ExpiresAt time.Time
}

// Cache provides a thread-safe in-memory cache with TTL support.
//
// Every Clear advances a generation counter. A caller that loads data
// outside the lock reads Generation first and stores with SetIfGeneration,
// so a response computed before an invalidation is never cached after it.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]Entry
	ttl        time.Duration
	generation uint64
	stats      Stats

	stop     chan struct{}
	stopOnce sync.Once
}

// Stats tracks cache performance metrics
type Stats struct {
	mu          sync.RWMutex
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// New creates a cache whose entries live for ttl. A background goroutine
// sweeps expired entries until Close is called.
//
// Example:
//
//	c := cache.New(5 * time.Minute)
//	defer c.Close()
//	c.Set("key", value)
//	if data, ok := c.Get("key"); ok {
//	    // Use cached data
//	}
func New(ttl time.Duration) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     ttl,
		stats: Stats{
			LastCleanup: time.Now(),
		},
		stop: make(chan struct{}),
	}

	go c.cleanupLoop(cleanupInterval)

	return c
}

// Get retrieves a value from the cache by key with automatic expiration checking.
//
// Behavior:
//   - Returns (nil, false) if key doesn't exist
//   - Returns (nil, false) if entry has expired (entry is deleted)
//   - Returns (data, true) if entry is valid
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have replaced the entry.
		if current, ok := c.entries[key]; ok && time.Now().After(current.ExpiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.recordMiss()
		c.recordEviction()
		return nil, false
	}

	c.recordHit()
	return entry.Data, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
}

// SetIfGeneration stores value only if no Clear happened since gen was read.
// It reports whether the value was stored.
func (c *Cache) SetIfGeneration(key string, value any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		return false
	}
	c.setLocked(key, value, c.ttl)
	return true
}

func (c *Cache) setLocked(key string, value any, ttl time.Duration) {
	c.entries[key] = Entry{
		Data:      value,
		ExpiresAt: time.Now().Add(ttl),
	}

	c.stats.mu.Lock()
	c.stats.TotalKeys = int64(len(c.entries))
	c.stats.mu.Unlock()
}

// Generation returns the current invalidation generation.
func (c *Cache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Delete removes a specific cache entry by key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if existed {
		c.recordEviction()
	}
}

// Clear removes all entries and advances the generation. Called when a
// pipeline run completes so clients see the new recommendation sets.
func (c *Cache) Clear() {
	c.mu.Lock()
	evictions := int64(len(c.entries))
	c.entries = make(map[string]Entry)
	c.generation++
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = 0
	c.stats.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// GetStats returns a snapshot of current cache performance statistics.
func (c *Cache) GetStats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return Stats{
		Hits:        c.stats.Hits,
		Misses:      c.stats.Misses,
		Evictions:   c.stats.Evictions,
		TotalKeys:   c.stats.TotalKeys,
		LastCleanup: c.stats.LastCleanup,
	}
}

// HitRate returns the cache hit rate as a percentage
func (c *Cache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// Close stops the background sweeper. The cache stays usable.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// cleanupLoop periodically removes expired entries
func (c *Cache) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stop:
			return
		}
	}
}

// cleanup removes all expired entries
func (c *Cache) cleanup() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	evictions := int64(0)
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			evictions++
		}
	}

	c.stats.mu.Lock()
	c.stats.Evictions += evictions
	c.stats.TotalKeys = int64(len(c.entries))
	c.stats.LastCleanup = now
	c.stats.mu.Unlock()
}

func (c *Cache) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	metrics.RecordAPICache(true)
}

func (c *Cache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
	metrics.RecordAPICache(false)
}

func (c *Cache) recordEviction() {
	c.stats.mu.Lock()
	c.stats.Evictions++
	c.stats.mu.Unlock()
}

// GenerateKey creates a cache key from the endpoint name and parameters
func GenerateKey(method string, params any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%s:%v", method, params)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", method, hash[:16])
}
