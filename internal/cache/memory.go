// Package cache provides the in-process assessment cache used when no Redis is configured.
package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// Defaults for a zero-valued configuration.
const (
	DefaultMaxItems = 1000
	DefaultTTL      = time.Hour
)

type entry struct {
	assessment *domain.Assessment
	expiresAt  time.Time
}

// MemoryCache is a size-bounded LRU of assessments with a cache-wide TTL. A shorter
// per-entry TTL passed to Set is honoured on read.
type MemoryCache struct {
	lru    *expirable.LRU[string, entry]
	ttl    time.Duration
	now    func() time.Time
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a new memory cache
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, entry](maxItems, nil, ttl),
		ttl: ttl,
		now: time.Now,
	}
}

// Get returns the cached assessment for a fingerprint.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.Assessment, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(key)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return e.assessment, true
}

// Set stores an assessment. The effective TTL is the smaller of ttl and the cache TTL.
func (c *MemoryCache) Set(_ context.Context, key string, assessment *domain.Assessment, ttl time.Duration) error {
	if ttl <= 0 || ttl > c.ttl {
		ttl = c.ttl
	}
	c.lru.Add(key, entry{assessment: assessment, expiresAt: c.now().Add(ttl)})
	return nil
}

// Delete removes a single entry.
func (c *MemoryCache) Delete(key string) {
	c.lru.Remove(key)
}

// Purge removes every entry.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

// Len returns the number of entries, including ones not yet swept.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Stats returns hit and miss counts.
func (c *MemoryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
