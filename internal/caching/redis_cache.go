// Package caching provides the Redis-backed assessment cache shared by server replicas.
package caching

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// DefaultKeyPrefix namespaces cache keys when none is configured.
const DefaultKeyPrefix = "cvd-risk:"

// cachedAssessment is the stored envelope around an assessment.
type cachedAssessment struct {
	Assessment *domain.Assessment `json:"assessment"`
	CachedAt   time.Time          `json:"cached_at"`
	ExpiresAt  time.Time          `json:"expires_at"`
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
}

// RedisResultCache stores assessments in Redis keyed by input fingerprint.
type RedisResultCache struct {
	client     *redis.Client
	logger     *logrus.Logger
	keyPrefix  string
	defaultTTL time.Duration

	statsMutex sync.Mutex
	stats      CacheStats
}

// NewRedisResultCache connects to Redis using the cache configuration and verifies
// the connection.
func NewRedisResultCache(ctx context.Context, config domain.CacheConfig, logger *logrus.Logger) (*RedisResultCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	if config.MaxRetries > 0 {
		opts.MaxRetries = config.MaxRetries
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisResultCacheWithClient(client, config.KeyPrefix, config.DefaultTTL, logger), nil
}

// NewRedisResultCacheWithClient wraps an existing client.
func NewRedisResultCacheWithClient(client *redis.Client, keyPrefix string, defaultTTL time.Duration, logger *logrus.Logger) *RedisResultCache {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &RedisResultCache{
		client:     client,
		logger:     logger,
		keyPrefix:  keyPrefix,
		defaultTTL: defaultTTL,
	}
}

// Get returns the cached assessment for a fingerprint. Errors and corrupt entries are
// reported as misses.
func (c *RedisResultCache) Get(ctx context.Context, key string) (*domain.Assessment, bool) {
	redisKey := c.key(key)

	data, err := c.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		c.record(false, false)
		return nil, false
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", redisKey).Warn("Redis cache get failed")
		c.record(false, true)
		return nil, false
	}

	var cached cachedAssessment
	if err := json.Unmarshal(data, &cached); err != nil || cached.Assessment == nil {
		// Remove corrupted cache entry
		c.client.Del(ctx, redisKey)
		c.record(false, true)
		return nil, false
	}

	c.record(true, false)
	return cached.Assessment, true
}

// Set stores an assessment. A non-positive ttl uses the default TTL.
func (c *RedisResultCache) Set(ctx context.Context, key string, assessment *domain.Assessment, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := time.Now().UTC()

	data, err := json.Marshal(cachedAssessment{
		Assessment: assessment,
		CachedAt:   now,
		ExpiresAt:  now.Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal assessment for cache: %w", err)
	}

	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store assessment in Redis: %w", err)
	}
	return nil
}

// Delete removes one cached assessment.
func (c *RedisResultCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// Clear removes every key under the cache prefix.
func (c *RedisResultCache) Clear(ctx context.Context) (int, error) {
	removed := 0
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("failed to delete cache key: %w", err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("failed to scan cache keys: %w", err)
	}
	return removed, nil
}

// Stats returns a snapshot of the hit and miss counters.
func (c *RedisResultCache) Stats() CacheStats {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	return c.stats
}

// HitRatio returns hits over lookups, or 0 before the first lookup.
func (c *RedisResultCache) HitRatio() float64 {
	s := c.Stats()
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Ping checks if Redis connection is alive
func (c *RedisResultCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *RedisResultCache) Close() error {
	return c.client.Close()
}

func (c *RedisResultCache) key(fingerprint string) string {
	return c.keyPrefix + "assessment:" + fingerprint
}

func (c *RedisResultCache) record(hit, failed bool) {
	c.statsMutex.Lock()
	defer c.statsMutex.Unlock()
	if hit {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	if failed {
		c.stats.Errors++
	}
}
