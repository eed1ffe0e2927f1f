// Package cache keeps recently used parsed rule sets in memory.
package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/freewebtopdf/source-patcher/internal/domain"
)

const defaultMaxSize = 256

type node struct {
	key   string
	value *domain.RuleSet
	prev  *node
	next  *node
}

// LRUCache implements domain.RuleSetCache with least-recently-used eviction.
// Values are cloned on the way in and out, so callers may mutate what they get.
type LRUCache struct {
	maxSize int
	size    int

	// sentinels
	head *node
	tail *node

	entries map[string]*node
	mutex   sync.Mutex

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// NewLRUCache creates a cache holding at most maxSize rule sets
func NewLRUCache(maxSize int) *LRUCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}

	head := &node{}
	tail := &node{}
	head.next = tail
	tail.prev = head

	return &LRUCache{
		maxSize: maxSize,
		head:    head,
		tail:    tail,
		entries: make(map[string]*node),
	}
}

// Get returns a copy of the cached rule set and marks it recently used
func (c *LRUCache) Get(key string) (*domain.RuleSet, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	found, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.moveToFront(found)
	c.hits.Add(1)
	return found.value.Clone(), true
}

// Set adds or replaces a rule set
func (c *LRUCache) Set(key string, set *domain.RuleSet) {
	if set == nil {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, ok := c.entries[key]; ok {
		existing.value = set.Clone()
		c.moveToFront(existing)
		return
	}

	n := &node{key: key, value: set.Clone()}
	c.addToFront(n)
	c.entries[key] = n
	c.size++

	if c.size > c.maxSize {
		c.evictLRU()
	}
}

// Invalidate drops a single entry
func (c *LRUCache) Invalidate(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if n, ok := c.entries[key]; ok {
		c.removeNode(n)
		delete(c.entries, key)
		c.size--
	}
}

// Clear drops every entry and resets the counters
func (c *LRUCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.head.next = c.tail
	c.tail.prev = c.head
	c.entries = make(map[string]*node)
	c.size = 0

	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
}

// Keys lists cached keys from most to least recently used
func (c *LRUCache) Keys() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	keys := make([]string, 0, c.size)
	for n := c.head.next; n != c.tail; n = n.next {
		keys = append(keys, n.key)
	}
	return keys
}

// Stats returns current cache statistics
func (c *LRUCache) Stats() domain.CacheStats {
	c.mutex.Lock()
	size := c.size
	c.mutex.Unlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	var hitRatio float64
	if total := hits + misses; total > 0 {
		hitRatio = float64(hits) / float64(total)
	}

	return domain.CacheStats{
		Hits:     hits,
		Misses:   misses,
		Size:     size,
		MaxSize:  c.maxSize,
		HitRatio: hitRatio,
	}
}

// HealthCheck reports degraded once the cache is close to full and evicting
func (c *LRUCache) HealthCheck(ctx context.Context) domain.HealthStatus {
	stats := c.Stats()
	evictions := c.evictions.Load()

	status := domain.HealthStatusHealthy
	message := "Cache is operating normally"
	details := map[string]any{
		"size":      stats.Size,
		"max_size":  stats.MaxSize,
		"hit_ratio": stats.HitRatio,
		"hits":      stats.Hits,
		"misses":    stats.Misses,
		"evictions": evictions,
	}

	if stats.Size >= int(float64(stats.MaxSize)*0.9) && evictions > 0 {
		status = domain.HealthStatusDegraded
		message = "Cache is evicting rule sets"
		details["warning"] = "consider raising CACHE_MAX_SIZE"
	}

	return domain.HealthStatus{
		Status:    status,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

func (c *LRUCache) moveToFront(n *node) {
	c.removeNode(n)
	c.addToFront(n)
}

func (c *LRUCache) addToFront(n *node) {
	n.prev = c.head
	n.next = c.head.next
	c.head.next.prev = n
	c.head.next = n
}

func (c *LRUCache) removeNode(n *node) {
	n.prev.next = n.next
	n.next.prev = n.prev
}

func (c *LRUCache) evictLRU() {
	if c.tail.prev == c.head {
		return
	}

	lru := c.tail.prev
	c.removeNode(lru)
	delete(c.entries, lru.key)
	c.size--
	c.evictions.Add(1)
}
