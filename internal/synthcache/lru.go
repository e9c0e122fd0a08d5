package synthcache

import (
	"container/list"
	"sync"
)

type lruItem struct {
	key   string
	entry *Entry
}

// LRU is the bounded in-process tier of the synthesis cache. Eviction is
// strictly by recency of access: when the cache is full, the
// oldest-accessed entry goes first. All methods are safe for concurrent
// use; recency updates take the write lock, so only one writer mutates
// the order at a time.
type LRU struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently accessed
	items    map[string]*list.Element
}

// NewLRU creates an LRU holding at most capacity entries.
func NewLRU(capacity int) *LRU {
	if capacity <= 0 {
		capacity = 128
	}
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns the entry for key and marks it most recently accessed.
func (c *LRU) Get(key string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruItem).entry, true
}

// Put inserts or refreshes an entry. Concurrent puts of the same key are
// last-writer-wins; entries are content-addressed so the payloads are
// identical anyway.
func (c *LRU) Put(key string, entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*lruItem).entry = entry
		c.order.MoveToFront(el)
		return
	}

	c.items[key] = c.order.PushFront(&lruItem{key: key, entry: entry})

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*lruItem).key)
		}
	}
}

// Len reports the current number of cached entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Capacity reports the configured bound.
func (c *LRU) Capacity() int { return c.capacity }
