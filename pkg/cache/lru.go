package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUCache is a thread-safe LRU cache with TTL support. Keys are hashed
// with xxhash before they are stored.
type LRUCache struct {
	lru       *expirable.LRU[uint64, interface{}]
	capacity  int
	ttl       time.Duration
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	clearing  atomic.Bool
}

// NewLRUCache creates a new LRU cache. A ttl of zero disables expiry.
func NewLRUCache(capacity int, ttl time.Duration) *LRUCache {
	c := &LRUCache{
		capacity: capacity,
		ttl:      ttl,
	}
	c.lru = expirable.NewLRU[uint64, interface{}](capacity, func(uint64, interface{}) {
		if !c.clearing.Load() {
			c.evictions.Add(1)
		}
	}, ttl)
	return c
}

// GenerateKey hashes a canonical query description into a cache key
func GenerateKey(canonical string) uint64 {
	return xxhash.Sum64String(canonical)
}

// Get retrieves a value from the cache
func (c *LRUCache) Get(key string) (interface{}, bool) {
	value, ok := c.lru.Get(GenerateKey(key))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return value, true
}

// Put adds a value to the cache
func (c *LRUCache) Put(key string, value interface{}) {
	c.lru.Add(GenerateKey(key), value)
}

// Remove drops one entry
func (c *LRUCache) Remove(key string) bool {
	return c.lru.Remove(GenerateKey(key))
}

// Clear removes all entries from the cache. Cleared entries are not
// counted as evictions.
func (c *LRUCache) Clear() {
	c.clearing.Store(true)
	defer c.clearing.Store(false)
	c.lru.Purge()
}

// Size returns the current number of items in the cache
func (c *LRUCache) Size() int {
	return c.lru.Len()
}

// Stats returns cache statistics
func (c *LRUCache) Stats() map[string]interface{} {
	hits, misses := c.hits.Load(), c.misses.Load()
	total := hits + misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"capacity":    c.capacity,
		"size":        c.lru.Len(),
		"hits":        hits,
		"misses":      misses,
		"evictions":   c.evictions.Load(),
		"hit_rate":    fmt.Sprintf("%.2f%%", hitRate),
		"ttl_seconds": c.ttl.Seconds(),
	}
}
