// Package cache provides the in-process TTL LRU backing lookups whose
// results never change once written, such as indexer call records.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a fixed-capacity cache with least-recently-used eviction and a
// uniform TTL. Safe for concurrent use.
type LRU[K comparable, V any] struct {
	mu     sync.Mutex
	cap    int
	ttl    time.Duration
	index  map[K]*list.Element
	recent *list.List // front is most recently used

	now func() time.Time
}

type lruEntry[K comparable, V any] struct {
	key     K
	value   V
	staleAt time.Time
}

func NewLRU[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	return &LRU[K, V]{
		cap:    capacity,
		ttl:    ttl,
		index:  make(map[K]*list.Element, capacity),
		recent: list.New(),
		now:    time.Now,
	}
}

// Get returns the cached value and refreshes its recency. Entries past
// their TTL are dropped on access.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.index[key]
	if !ok {
		return zero, false
	}
	ent := elem.Value.(*lruEntry[K, V])
	if c.now().After(ent.staleAt) {
		c.drop(elem)
		return zero, false
	}
	c.recent.MoveToFront(elem)
	return ent.value, true
}

// Put stores a value, restarting its TTL. When the cache is full the least
// recently used entry makes room.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		ent := elem.Value.(*lruEntry[K, V])
		ent.value = value
		ent.staleAt = c.now().Add(c.ttl)
		c.recent.MoveToFront(elem)
		return
	}
	if c.recent.Len() >= c.cap {
		if oldest := c.recent.Back(); oldest != nil {
			c.drop(oldest)
		}
	}
	c.index[key] = c.recent.PushFront(&lruEntry[K, V]{
		key:     key,
		value:   value,
		staleAt: c.now().Add(c.ttl),
	})
}

// Len reports the resident entry count. Expired entries linger until the
// next access touches them.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent.Len()
}

func (c *LRU[K, V]) drop(elem *list.Element) {
	c.recent.Remove(elem)
	delete(c.index, elem.Value.(*lruEntry[K, V]).key)
}
