// Package cache provides a small in-process TTL cache keyed by symbol, with
// oldest-first eviction under capacity pressure and stale-allowed reads for
// degraded-mode fallbacks.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value      T
	insertedAt time.Time
}

// Cache is a concurrency-safe TTL cache. Updates are atomic replacements;
// readers never observe a partially written entry.
type Cache[T any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	entries map[string]entry[T]
	order   []string // insertion order, oldest first

	// now is overridable for tests
	now func() time.Time
}

// New creates a cache with the given TTL and capacity.
func New[T any](ttl time.Duration, maxSize int) *Cache[T] {
	return &Cache[T]{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[string]entry[T]),
		now:     time.Now,
	}
}

// Get returns the cached value for the symbol if present and not expired.
func (c *Cache[T]) Get(symbol string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok || c.now().Sub(e.insertedAt) > c.ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

// GetStale returns the cached value for the symbol ignoring TTL expiry,
// together with its insertion time. Used only for fallback paths.
func (c *Cache[T]) GetStale(symbol string) (T, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok {
		var zero T
		return zero, time.Time{}, false
	}
	return e.value, e.insertedAt, true
}

// Set inserts or overwrites the value for the symbol. At capacity the oldest
// entry by insertion time is evicted first. Overwriting refreshes the
// symbol's insertion position.
func (c *Cache[T]) Set(symbol string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[symbol]; ok {
		c.removeFromOrder(symbol)
	} else if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[symbol] = entry[T]{value: value, insertedAt: c.now()}
	c.order = append(c.order, symbol)
}

// Delete removes the entry for the symbol.
func (c *Cache[T]) Delete(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[symbol]; !ok {
		return
	}
	delete(c.entries, symbol)
	c.removeFromOrder(symbol)
}

// Clear empties all entries.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]entry[T])
	c.order = nil
}

// Len returns the number of entries, expired ones included.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// removeFromOrder drops the symbol from the insertion order list.
// Callers must hold the write lock.
func (c *Cache[T]) removeFromOrder(symbol string) {
	for i, s := range c.order {
		if s == symbol {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
