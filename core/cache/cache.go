// Package cache provides a bounded key/value store that combines LRU
// recency with a write-anchored TTL.
//
// Reads refresh a key's position in the recency list but never its
// deadline: a record expires TTL after the Put that wrote it, however
// often it is read in between. Expiry is lazy, an expired record keeps its
// slot until a Get for that key (or an eviction) removes it.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"
)

// Cache is a fixed-capacity LRU cache with absolute TTL expiry.
// All methods are safe for concurrent use; every Get and Put on one
// instance is serialized by a single mutex.
type Cache[V any] struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	lruList  *list.List // front = most recently used
	capacity int
	ttl      time.Duration
	now      func() time.Time

	stats struct {
		hits        atomic.Uint64
		misses      atomic.Uint64
		expirations atomic.Uint64
		evictions   atomic.Uint64
		puts        atomic.Uint64
	}
}

type record[V any] struct {
	key     string
	value   V
	written time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now as the cache's clock.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// New creates a cache holding at most capacity records, each valid for ttl
// after it was last written. A capacity below 1 yields a cache that stores
// nothing.
func New[V any](capacity int, ttl time.Duration, opts ...Option) *Cache[V] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if capacity < 0 {
		capacity = 0
	}

	return &Cache[V]{
		items:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
		capacity: capacity,
		ttl:      ttl,
		now:      o.now,
	}
}

// Get returns the value stored under key. A record whose age has reached
// the TTL is removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.misses.Add(1)
		return zero, false
	}

	rec := elem.Value.(*record[V])
	if c.now().Sub(rec.written) >= c.ttl {
		c.removeElement(elem)
		c.stats.expirations.Add(1)
		c.stats.misses.Add(1)
		return zero, false
	}

	c.lruList.MoveToFront(elem)
	c.stats.hits.Add(1)
	return rec.value, true
}

// Put stores value under key as the most recently used record and restarts
// its TTL. Inserting a new key into a full cache evicts the least recently
// used record first.
func (c *Cache[V]) Put(key string, value V) {
	if c.capacity == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stats.puts.Add(1)
	now := c.now()

	if elem, ok := c.items[key]; ok {
		rec := elem.Value.(*record[V])
		rec.value = value
		rec.written = now
		c.lruList.MoveToFront(elem)
		return
	}

	if c.lruList.Len() >= c.capacity {
		if oldest := c.lruList.Back(); oldest != nil {
			c.removeElement(oldest)
			c.stats.evictions.Add(1)
		}
	}

	c.items[key] = c.lruList.PushFront(&record[V]{
		key:     key,
		value:   value,
		written: now,
	})
}

// Len reports the number of records currently held, expired ones included.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}

// keys returns the stored keys from most to least recently used.
func (c *Cache[V]) keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.lruList.Len())
	for e := c.lruList.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*record[V]).key)
	}
	return keys
}

func (c *Cache[V]) removeElement(elem *list.Element) {
	rec := c.lruList.Remove(elem).(*record[V])
	delete(c.items, rec.key)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache[V]) Stats() Stats {
	return Stats{
		Size:        c.Len(),
		Capacity:    c.capacity,
		Hits:        c.stats.hits.Load(),
		Misses:      c.stats.misses.Load(),
		Expirations: c.stats.expirations.Load(),
		Evictions:   c.stats.evictions.Load(),
		Puts:        c.stats.puts.Load(),
	}
}

// Stats contains cache statistics
type Stats struct {
	Size        int    `json:"size"`
	Capacity    int    `json:"capacity"`
	Hits        uint64 `json:"hits"`
	Misses      uint64 `json:"misses"`
	Expirations uint64 `json:"expirations"`
	Evictions   uint64 `json:"evictions"`
	Puts        uint64 `json:"puts"`
}

// HitRate returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
