// Package dedup provides a bounded recency cache for suppressing duplicate
// transaction deliveries. It is a best-effort window, not a durability
// guarantee: single-process, memory-bound, cleared on restart.
package dedup

import (
	"container/list"
	"sync"
)

// DefaultCapacity bounds the cache when no explicit capacity is given.
const DefaultCapacity = 10_000

// Cache maps transaction signatures to "already processed", evicting the
// least-recently-touched key once capacity is exceeded. Recency is refreshed
// on both lookup hits and insertion. Safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently touched
}

// New creates a cache holding at most capacity keys. Non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Seen reports whether key was marked before, refreshing its recency on a hit.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return false
	}
	c.order.MoveToFront(el)
	return true
}

// Mark records key as processed. Marking an existing key refreshes its
// recency instead of inserting a duplicate.
func (c *Cache) Mark(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mark(key)
}

// CheckAndMark marks key and reports whether it was already present, under a
// single lock acquisition. Concurrent callers racing on the same key see
// exactly one false.
func (c *Cache) CheckAndMark(key string) (alreadySeen bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return true
	}
	c.mark(key)
	return false
}

// mark inserts or refreshes key. Caller holds c.mu.
func (c *Cache) mark(key string) {
	if el, ok := c.entries[key]; ok {
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(key)

	for len(c.entries) > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}
}

// Len returns the number of keys currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
