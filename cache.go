package websmith

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultCacheMaxSize = 100
	DefaultCacheTTL     = 5 * time.Minute
)

// CacheStats is a point-in-time view of an APICache.
type CacheStats struct {
	Size    int     `json:"size"`
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

type cacheEntry struct {
	key          string
	data         any
	timestamp    time.Time
	lastAccessed time.Time
}

// APICache is a bounded response cache. Entries expire ttl after they were
// stored; when full, the least recently accessed entry is evicted. Hit and miss
// counters accumulate until Clear.
type APICache struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List // front = most recently accessed
	hits    int64
	misses  int64
	now     func() time.Time
}

// NewAPICache creates a cache. Non-positive arguments fall back to 100 entries / 5 minutes.
func NewAPICache(maxSize int, ttl time.Duration) *APICache {
	if maxSize <= 0 {
		maxSize = DefaultCacheMaxSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &APICache{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the cached data for key. Expired entries are removed and count as a miss.
func (c *APICache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := elem.Value.(*cacheEntry)
	now := c.now()
	if c.expired(entry, now) {
		c.removeElement(elem)
		c.misses++
		return nil, false
	}

	entry.lastAccessed = now
	c.order.MoveToFront(elem)
	c.hits++
	return entry.data, true
}

// Set stores data under key, evicting the least recently accessed entry when full.
func (c *APICache) Set(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if elem, ok := c.items[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.data = data
		entry.timestamp = now
		entry.lastAccessed = now
		c.order.MoveToFront(elem)
		return
	}

	if len(c.items) >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	c.items[key] = c.order.PushFront(&cacheEntry{
		key:          key,
		data:         data,
		timestamp:    now,
		lastAccessed: now,
	})
}

// Delete removes key from the cache.
func (c *APICache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.removeElement(elem)
	}
}

// Clear removes every entry and resets the hit/miss counters.
func (c *APICache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.maxSize)
	c.order.Init()
	c.hits = 0
	c.misses = 0
}

// Cleanup removes all expired entries and returns how many were removed.
func (c *APICache) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*cacheEntry), now) {
			c.removeElement(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Stats returns size and hit/miss counters.
func (c *APICache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats := CacheStats{
		Size:   len(c.items),
		Hits:   c.hits,
		Misses: c.misses,
	}
	if total := c.hits + c.misses; total > 0 {
		stats.HitRate = float64(c.hits) / float64(total)
	}
	return stats
}

// Len returns the number of stored entries, expired or not.
func (c *APICache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// TTL returns the entry lifetime.
func (c *APICache) TTL() time.Duration {
	return c.ttl
}

func (c *APICache) expired(entry *cacheEntry, now time.Time) bool {
	return now.Sub(entry.timestamp) > c.ttl
}

func (c *APICache) removeElement(elem *list.Element) {
	entry := c.order.Remove(elem).(*cacheEntry)
	delete(c.items, entry.key)
}
