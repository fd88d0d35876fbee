package cache

import (
	"container/list"
	"context"
	"sync"
)

// MemoryCache is an in-memory cache implementation.
//
// It stores the computed object itself: Get returns the identical value
// that was passed to Set. With a positive Policy.MaxEntries it evicts the
// least recently used entry once the bound is exceeded.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[Key]*list.Element
	order      *list.List // front is most recently used
	maxEntries int
}

type memoryItem struct {
	key   Key
	entry Entry
}

// NewMemoryCache creates a new in-memory cache with the given policy.
func NewMemoryCache(policy Policy) *MemoryCache {
	maxEntries := policy.MaxEntries
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &MemoryCache{
		entries:    make(map[Key]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// Get retrieves an entry from the cache and marks it recently used.
func (c *MemoryCache) Get(_ context.Context, key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*memoryItem).entry, true
}

// Set stores an entry, evicting the least recently used entry when the
// cache is full.
func (c *MemoryCache) Set(_ context.Context, key Key, entry Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*memoryItem).entry = entry
		c.order.MoveToFront(el)
		return nil
	}

	c.entries[key] = c.order.PushFront(&memoryItem{key: key, entry: entry})
	if c.maxEntries > 0 {
		for c.order.Len() > c.maxEntries {
			oldest := c.order.Back()
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*memoryItem).key)
		}
	}
	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *MemoryCache) Delete(_ context.Context, key Key) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	return nil
}

// Len returns the number of stored entries.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Purge removes every entry.
func (c *MemoryCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[Key]*list.Element)
	c.order.Init()
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
