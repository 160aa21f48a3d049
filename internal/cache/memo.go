// Package cache provides an in-process TTL memoizer used to avoid redundant
// external lookups. It is a correctness/cost optimization, not a bounded
// cache: there is no eviction by size and callers must not rely on it for
// memory control.
package cache

import (
	"context"
	"regexp"
	"sync"
	"time"
)

// DefaultTTL is the expiry applied when no per-read override is given.
const DefaultTTL = 60 * time.Second

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// Cache is a generic TTL key/value memoizer safe for concurrent use. Entries
// are lazily expired on read and swept in the background by Janitor.
type Cache[V any] struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]entry[V]
}

// New creates a Cache with the given default TTL. A non-positive ttl falls
// back to DefaultTTL.
func New[V any](ttl time.Duration) *Cache[V] {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache[V]{
		ttl:     ttl,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value for key if it is younger than the default TTL.
func (c *Cache[V]) Get(key string) (V, bool) {
	return c.GetWithTTL(key, c.ttl)
}

// GetWithTTL returns the cached value for key if it is younger than ttl.
// This lets callers demand fresher data than the default without a separate
// cache.
func (c *Cache[V]) GetWithTTL(key string, ttl time.Duration) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if time.Since(e.storedAt) >= ttl {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, resetting its age.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{value: value, storedAt: time.Now()}
}

// Invalidate removes a single key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidatePattern removes every key matching the compiled pattern and
// returns the number of entries removed.
func (c *Cache[V]) InvalidatePattern(pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if re.MatchString(key) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Sweep removes entries older than the default TTL.
func (c *Cache[V]) Sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if time.Since(e.storedAt) >= c.ttl {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Janitor runs the background sweep on the given interval until the context
// is cancelled. Call in a goroutine.
func (c *Cache[V]) Janitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
