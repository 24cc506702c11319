// Package cache provides a small LRU-with-TTL cache for answered
// questions. Retrieval is read-only, so a cached answer stays valid
// until the corpus changes; writers bump the generation to invalidate.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"docqa/internal/domain"
)

type AnswerCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	gen     uint64
}

type cacheEntry struct {
	answer    domain.Answer
	timestamp time.Time
	gen       uint64
}

func NewAnswerCache(maxSize int, ttl time.Duration) *AnswerCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnswerCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

func cacheKey(question string, topK int) string {
	data := []byte(question)
	data = append(data, byte(topK>>8), byte(topK))
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// Get returns a cached answer for the question, if still fresh and
// from the current corpus generation.
func (c *AnswerCache) Get(question string, topK int) (domain.Answer, bool) {
	key := cacheKey(question, topK)

	c.mu.RLock()
	entry, exists := c.entries[key]
	currentGen := c.gen
	c.mu.RUnlock()

	if !exists {
		return domain.Answer{}, false
	}
	if entry.gen != currentGen || time.Since(entry.timestamp) > c.ttl {
		c.mu.Lock()
		c.evict(key)
		c.mu.Unlock()
		return domain.Answer{}, false
	}
	return entry.answer, true
}

// Put stores an answer under the current corpus generation, evicting
// the oldest entry when full.
func (c *AnswerCache) Put(question string, topK int, answer domain.Answer) {
	key := cacheKey(question, topK)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.maxSize {
			c.evict(c.order[0])
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{
		answer:    answer,
		timestamp: time.Now(),
		gen:       c.gen,
	}
}

// Invalidate marks all cached answers stale. Called after any change
// to the indexed corpus.
func (c *AnswerCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
}

// Len returns the number of cached entries, fresh or stale.
func (c *AnswerCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// evict removes key; callers hold the write lock.
func (c *AnswerCache) evict(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
