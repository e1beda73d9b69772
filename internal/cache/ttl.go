package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a cache built by NewTTL.
const DefaultMaxEntries = 1024

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTL is an in-memory get-or-compute cache whose entries expire after a fixed duration.
// It never holds more than maxEntries values; expired entries are dropped on lookup and
// pruned before a full cache evicts the entry closest to expiry.
type TTL[V any] struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu    sync.RWMutex
	items map[string]entry[V]
	// gen changes on every Clear so computations started before it are not stored.
	gen uint64
}

// NewTTL returns a cache that keeps computed values for the provided TTL.
func NewTTL[V any](ttl time.Duration) *TTL[V] {
	return NewBoundedTTL[V](ttl, DefaultMaxEntries)
}

// NewBoundedTTL is NewTTL with an explicit entry cap.
func NewBoundedTTL[V any](ttl time.Duration, maxEntries int) *TTL[V] {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &TTL[V]{
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		items:      make(map[string]entry[V]),
	}
}

// GetOrCompute returns the cached value for key when it has not expired, otherwise it
// invokes compute and stores the result. Errors are returned without being cached.
func (c *TTL[V]) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (V, error)) (V, error) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.items[key]
	gen := c.gen
	c.mu.RUnlock()
	if ok && now.Before(e.expires) {
		return e.value, nil
	}
	if ok {
		c.mu.Lock()
		if cur, still := c.items[key]; still && !now.Before(cur.expires) {
			delete(c.items, key)
		}
		c.mu.Unlock()
	}

	value, err := compute(ctx)
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return value, nil
	}
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxEntries {
		c.pruneLocked(now)
		if len(c.items) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}
	c.items[key] = entry[V]{value: value, expires: now.Add(c.ttl)}

	return value, nil
}

// Prune drops every expired entry and reports how many were removed.
func (c *TTL[V]) Prune() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked(now)
}

func (c *TTL[V]) pruneLocked(now time.Time) int {
	removed := 0
	for key, e := range c.items {
		if !now.Before(e.expires) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

func (c *TTL[V]) evictOldestLocked() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, e := range c.items {
		if !found || e.expires.Before(oldest) {
			oldestKey, oldest, found = key, e.expires, true
		}
	}
	if found {
		delete(c.items, oldestKey)
	}
}

// Delete drops a single key.
func (c *TTL[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Clear drops every entry. Values computed concurrently with Clear are returned to
// their callers but not stored.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry[V])
	c.gen++
	c.mu.Unlock()
}

// Len reports the number of stored entries. Expired entries count until a lookup or
// Prune removes them.
func (c *TTL[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
