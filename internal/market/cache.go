package market

import (
	"container/list"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type cacheEntry[V any] struct {
	key        string
	value      V
	err        error
	insertedAt time.Time
	ttl        time.Duration
	elem       *list.Element
}

// Cache is a bounded memoization table keyed by (operation, argument)
// strings. Entries expire after their per-call TTL and the
// least-recently-inserted entry is evicted when the size bound is hit.
// Error results are cached like successes so a known-broken upstream
// call is not hammered inside the TTL window; callers treat a cached
// error exactly like a fresh one.
//
// Concurrent misses for the same key are coalesced through
// singleflight, so a miss race computes once instead of twice.
type Cache[V any] struct {
	capacity int

	// test seam
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*cacheEntry[V]
	order   *list.List // oldest-inserted entry at the front
	sf      singleflight.Group
}

func NewCache[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache[V]{
		capacity: capacity,
		now:      time.Now,
		entries:  make(map[string]*cacheEntry[V]),
		order:    list.New(),
	}
}

// GetOrCompute returns the live cached result for key, or invokes
// compute, stores its result (value or error) and returns it. A zero
// or negative ttl bypasses the cache entirely.
func (c *Cache[V]) GetOrCompute(key string, ttl time.Duration, compute func() (V, error)) (V, error) {
	if ttl <= 0 {
		return compute()
	}
	if e, ok := c.lookup(key); ok {
		return e.value, e.err
	}
	v, _, _ := c.sf.Do(key, func() (any, error) {
		// Re-check: a concurrent flight may have stored while this
		// caller was queueing.
		if e, ok := c.lookup(key); ok {
			return e, nil
		}
		value, err := compute()
		return c.store(key, ttl, value, err), nil
	})
	e := v.(*cacheEntry[V])
	return e.value, e.err
}

// Len reports the number of entries currently held, expired or not.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[V]) lookup(key string) (*cacheEntry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	// A hit is never served past its TTL, even below capacity.
	if c.now().Sub(e.insertedAt) >= e.ttl {
		return nil, false
	}
	return e, true
}

func (c *Cache[V]) store(key string, ttl time.Duration, value V, err error) *cacheEntry[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[key]; ok {
		// Refresh re-inserts at the back rather than appending.
		c.order.Remove(old.elem)
	}
	e := &cacheEntry[V]{key: key, value: value, err: err, insertedAt: c.now(), ttl: ttl}
	e.elem = c.order.PushBack(e)
	c.entries[key] = e
	for len(c.entries) > c.capacity {
		front := c.order.Front()
		if front == nil {
			break
		}
		evicted := front.Value.(*cacheEntry[V])
		c.order.Remove(front)
		delete(c.entries, evicted.key)
	}
	return e
}
