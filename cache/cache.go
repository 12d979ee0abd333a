// Package cache provides a generic TTL cache with single-flight population
// used by the definition service to share one fetch between concurrent
// callers of the same key.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/taskgrid/taskgrid/internal/clock"
)

// Entry keeps a cached value together with its load time.
type Entry[V any] struct {
	Value    V
	LoadedAt time.Time
}

// Expired reports whether the entry is older than ttl. A non-positive ttl
// never expires.
func (e *Entry[V]) Expired(ttl time.Duration) bool {
	if e == nil {
		return true
	}
	if ttl <= 0 {
		return false
	}
	return clock.Now().After(e.LoadedAt.Add(ttl))
}

// Loader populates a cache entry for a key.
type Loader[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Cache is a generic TTL cache. Concurrent Load calls for the same expired or
// absent key share a single loader invocation; a loader failure leaves any
// stale entry untouched so the next call retries.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*Entry[V]
	ttl     time.Duration
	group   singleflight.Group
	keyFmt  func(K) string
}

// New creates a cache with the supplied ttl. A non-positive ttl disables
// expiry.
func New[K comparable, V any](ttl time.Duration) *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*Entry[V]),
		ttl:     ttl,
		keyFmt:  func(key K) string { return fmt.Sprintf("%v", key) },
	}
}

// Lookup returns the fresh cached value for key without loading.
func (c *Cache[K, V]) Lookup(key K) (V, bool) {
	c.mu.RLock()
	entry := c.entries[key]
	c.mu.RUnlock()
	if entry == nil || entry.Expired(c.ttl) {
		var zero V
		return zero, false
	}
	return entry.Value, true
}

// Load returns the cached value for key, invoking loader when the entry is
// absent or expired. The second result reports whether the value came from
// the cache.
func (c *Cache[K, V]) Load(ctx context.Context, key K, loader Loader[K, V]) (V, bool, error) {
	if value, ok := c.Lookup(key); ok {
		return value, true, nil
	}
	value, err, _ := c.group.Do(c.keyFmt(key), func() (interface{}, error) {
		// Re-check after winning the flight; a concurrent loader may have
		// refreshed the entry already.
		if value, ok := c.Lookup(key); ok {
			return value, nil
		}
		value, err := loader(ctx, key)
		if err != nil {
			return nil, err
		}
		c.Put(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	return value.(V), false, nil
}

// Put stores a value with the current load time.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &Entry[V]{Value: value, LoadedAt: clock.Now()}
}

// Evict removes a key.
func (c *Cache[K, V]) Evict(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*Entry[V])
}

// Len returns the number of entries including expired ones.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
