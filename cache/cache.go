// Package cache provides an in-memory result cache for synchronous crawls.
// Identical configurations crawled against unchanged pages are idempotent,
// so serving a recent result is safe when the caller opts in.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/use-agent/gleaner/models"
)

// maxEntryAge is the hard upper bound on entry lifetime; the sweep loop
// evicts anything older regardless of what callers ask for.
const maxEntryAge = time.Hour

// entry holds a cached result with its creation timestamp.
type entry struct {
	result    *models.CrawlResult
	createdAt time.Time
}

// Cache is a simple in-memory cache for crawl results.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
}

// New creates a Cache with the given maximum number of entries. A
// background goroutine evicts expired entries every 5 minutes.
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
	}
	go c.cleanupLoop()
	return c
}

// Key derives a cache key from the full crawl configuration. Two requests
// share a key only when their configurations marshal identically.
func Key(cfg *models.CrawlConfig) string {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Get retrieves a cached result younger than maxAgeMs (milliseconds).
// maxAgeMs <= 0 disables the lookup. The second return reports a hit.
func (c *Cache) Get(key string, maxAgeMs int) (*models.CrawlResult, bool) {
	if key == "" || maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	maxAge := time.Duration(maxAgeMs) * time.Millisecond
	if maxAge > maxEntryAge {
		maxAge = maxEntryAge
	}
	if time.Since(e.createdAt) > maxAge {
		return nil, false
	}
	return e.result, true
}

// Set stores a result. Only successful results are worth caching; failed
// crawls are stored by the caller's choice not to call Set.
func (c *Cache) Set(key string, result *models.CrawlResult) {
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.store) >= c.maxEntries {
		c.evictOldestLocked()
	}
	c.store[key] = &entry{result: result, createdAt: time.Now()}
}

// evictOldestLocked removes the single oldest entry. Caller holds mu.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldestAt time.Time
	for k, e := range c.store {
		if oldestKey == "" || e.createdAt.Before(oldestAt) {
			oldestKey = k
			oldestAt = e.createdAt
		}
	}
	if oldestKey != "" {
		delete(c.store, oldestKey)
	}
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-maxEntryAge)
		c.mu.Lock()
		for k, e := range c.store {
			if e.createdAt.Before(cutoff) {
				delete(c.store, k)
			}
		}
		c.mu.Unlock()
	}
}
