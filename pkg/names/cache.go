package names

import (
	"container/list"
	"context"
	"sync"
)

// DefaultCacheSize bounds the in-memory cache.
const DefaultCacheSize = 4096

// Cache is a bounded LRU in front of a Resolver. When full, the least
// recently used entry is evicted. Safe for concurrent use.
type Cache struct {
	resolver Resolver
	maxSize  int

	mu      sync.Mutex
	entries map[int64]*list.Element
	order   *list.List
}

type cacheEntry struct {
	id   int64
	name Name
}

// NewCache wraps resolver with an LRU holding at most maxSize entries
// (DefaultCacheSize when maxSize <= 0).
func NewCache(resolver Resolver, maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}
	return &Cache{
		resolver: resolver,
		maxSize:  maxSize,
		entries:  make(map[int64]*list.Element),
		order:    list.New(),
	}
}

// Resolve serves hits from the cache and fetches only the missing ids
// from the underlying resolver.
func (c *Cache) Resolve(ctx context.Context, ids []int64) (map[int64]Name, error) {
	out := make(map[int64]Name, len(ids))

	c.mu.Lock()
	var missing []int64
	for _, id := range ids {
		if el, ok := c.entries[id]; ok {
			c.order.MoveToFront(el)
			out[id] = el.Value.(*cacheEntry).name
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	resolved, err := c.resolver.Resolve(ctx, missing)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	for id, name := range resolved {
		out[id] = name
		c.put(id, name)
	}
	c.mu.Unlock()

	return out, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// put assumes c.mu is held.
func (c *Cache) put(id int64, name Name) {
	if el, ok := c.entries[id]; ok {
		el.Value.(*cacheEntry).name = name
		c.order.MoveToFront(el)
		return
	}
	c.entries[id] = c.order.PushFront(&cacheEntry{id: id, name: name})
	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).id)
	}
}
