package sheetsplit

import (
	"container/list"
	"sync"
)

// rewriteCache is a thread-safe LRU cache of rewrite results. Workbooks
// tend to repeat the same formula down an entire column, so caching by
// (sheet, formula text) collapses most of the rewrite work. When the
// cache is full the least recently used entry is evicted.
type rewriteCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type rewriteEntry struct {
	key   string
	value string
}

func newRewriteCache(capacity int) *rewriteCache {
	return &rewriteCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Load retrieves a cached rewrite result and marks it most recently used.
func (c *rewriteCache) Load(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*rewriteEntry).value, true
	}
	return "", false
}

// Store adds or refreshes a rewrite result, evicting the least recently
// used entry when at capacity.
func (c *rewriteCache) Store(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*rewriteEntry).value = value
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*rewriteEntry).key)
		}
	}

	c.entries[key] = c.order.PushFront(&rewriteEntry{key: key, value: value})
}

// Len returns the current number of cached results.
func (c *rewriteCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.order.Len()
}
