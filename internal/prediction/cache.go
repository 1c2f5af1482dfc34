package prediction

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Cache stores raw predictor responses keyed by deterministic request keys.
// Implementations own the TTL lifecycle. Keys are fully determined by
// (model, variant, mint, snapshot index), so concurrent strategy instances
// touch disjoint keys and need no coordination beyond single-key atomicity.
type Cache interface {
	// Get returns the cached raw response and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a raw response with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CacheKey builds the deterministic cache key for one predictor request.
func CacheKey(model, variant, mint string, snapshotIndex int) string {
	return fmt.Sprintf("%s|%s|%s|%d", model, variant, mint, snapshotIndex)
}

// cacheEntry is one stored response with its expiry.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache with per-entry TTL.
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]cacheEntry
	now  func() time.Time // injectable clock for tests
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		data: make(map[string]cacheEntry),
		now:  time.Now,
	}
}

// Compile-time interface check.
var _ Cache = (*MemoryCache)(nil)

// WithClock sets a custom clock function for deterministic tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.now = now
	return c
}

// Get returns the cached raw response if present and not expired.
// Expired entries are removed lazily on the next Set or Purge.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.data[key]
	if !exists || c.now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores a raw response with a TTL.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.data[key] = cacheEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.now().Add(ttl),
	}
	return nil
}

// Purge removes all expired entries and returns how many were dropped.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	dropped := 0
	for key, entry := range c.data {
		if now.After(entry.expiresAt) {
			delete(c.data, key)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of stored entries, expired included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
