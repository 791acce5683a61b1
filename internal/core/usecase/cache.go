package usecase

import (
	"sync"
	"time"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

type cacheEntry struct {
	docs       []domain.Document
	insertedAt time.Time
}

// resultCache memoizes final retrieval results by raw query text. Entries
// expire after ttl (checked on read) and capacity overflow evicts the entry
// with the oldest insertion timestamp. All access is serialized by one lock;
// contention is expected to be low.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	entries  map[string]cacheEntry
}

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	if capacity <= 0 {
		capacity = 128
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]cacheEntry, capacity),
	}
}

func (c *resultCache) Get(query string) ([]domain.Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[query]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.insertedAt) >= c.ttl {
		delete(c.entries, query)
		return nil, false
	}

	out := make([]domain.Document, len(entry.docs))
	copy(out, entry.docs)
	return out, true
}

func (c *resultCache) Put(query string, docs []domain.Document) {
	stored := make([]domain.Document, len(docs))
	copy(stored, docs)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[query]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}
	c.entries[query] = cacheEntry{docs: stored, insertedAt: c.now()}
}

func (c *resultCache) evictOldestLocked() {
	oldestKey := ""
	var oldestAt time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.insertedAt.Before(oldestAt) {
			oldestKey = key
			oldestAt = entry.insertedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
