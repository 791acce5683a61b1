package usecase

import (
	"fmt"
	"testing"
	"time"

	"github.com/oncare-clinic/rag-chatbot/internal/core/domain"
)

func newTestCache(capacity int, ttl time.Duration) (*resultCache, *time.Time) {
	cache := newResultCache(capacity, ttl)
	current := time.Unix(1_700_000_000, 0)
	cache.now = func() time.Time { return current }
	return cache, &current
}

func TestResultCacheHitWithinTTL(t *testing.T) {
	cache, clock := newTestCache(4, time.Minute)
	cache.Put("q", []domain.Document{{ID: "a", Similarity: 0.8}})

	*clock = clock.Add(30 * time.Second)
	docs, ok := cache.Get("q")
	if !ok {
		t.Fatalf("expected cache hit before TTL")
	}
	if len(docs) != 1 || docs[0].ID != "a" {
		t.Fatalf("unexpected cached docs: %+v", docs)
	}
}

func TestResultCacheExpiresOnRead(t *testing.T) {
	cache, clock := newTestCache(4, time.Minute)
	cache.Put("q", []domain.Document{{ID: "a"}})

	*clock = clock.Add(time.Minute)
	if _, ok := cache.Get("q"); ok {
		t.Fatalf("entry at TTL age must be expired")
	}
	if cache.Len() != 0 {
		t.Fatalf("expired entry must be removed on read, len=%d", cache.Len())
	}
}

func TestResultCacheEvictsOldestInsertion(t *testing.T) {
	cache, clock := newTestCache(3, time.Hour)
	for i := 0; i < 3; i++ {
		cache.Put(fmt.Sprintf("q%d", i), nil)
		*clock = clock.Add(time.Second)
	}

	cache.Put("q3", nil)
	if cache.Len() != 3 {
		t.Fatalf("capacity must hold at 3, len=%d", cache.Len())
	}
	if _, ok := cache.Get("q0"); ok {
		t.Fatalf("oldest entry q0 must have been evicted")
	}
	for _, key := range []string{"q1", "q2", "q3"} {
		if _, ok := cache.Get(key); !ok {
			t.Fatalf("expected %s to survive eviction", key)
		}
	}
}

func TestResultCachePutSameKeyDoesNotEvict(t *testing.T) {
	cache, clock := newTestCache(2, time.Hour)
	cache.Put("a", nil)
	*clock = clock.Add(time.Second)
	cache.Put("b", nil)
	*clock = clock.Add(time.Second)

	cache.Put("a", []domain.Document{{ID: "fresh"}})
	if cache.Len() != 2 {
		t.Fatalf("overwriting an existing key must not evict, len=%d", cache.Len())
	}
	if _, ok := cache.Get("b"); !ok {
		t.Fatalf("unrelated entry must survive overwrite")
	}
}

func TestResultCacheReturnsCopy(t *testing.T) {
	cache, _ := newTestCache(2, time.Hour)
	cache.Put("q", []domain.Document{{ID: "a"}})

	docs, _ := cache.Get("q")
	docs[0].ID = "mutated"

	again, _ := cache.Get("q")
	if again[0].ID != "a" {
		t.Fatalf("cache must hand out copies, got %+v", again[0])
	}
}
