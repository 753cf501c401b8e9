// Package cache provides a small process-local TTL cache. Entries are
// non-authoritative and vanish on restart; callers must tolerate misses.
package cache

import (
	"sync"
	"time"
)

// TTL is a concurrency-safe cache with per-entry expiry.
type TTL[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]entry[V]
	ttl     time.Duration
	now     func() time.Time
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// NewTTL creates a cache whose entries expire ttl after Set.
func NewTTL[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		entries: make(map[K]entry[V]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached value and whether it is present and unexpired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores the value with a fresh TTL.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Delete removes the key if present.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Sweep drops expired entries and returns how many were removed.
// Callers run it on a ticker; Get already ignores expired entries,
// so sweeping only bounds memory.
func (c *TTL[K, V]) Sweep() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, expired or not.
func (c *TTL[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
