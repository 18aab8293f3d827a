package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

// defaultLimiterTableSize bounds how many client limiters are held at once.
const defaultLimiterTableSize = 10000

// RateLimiter throttles requests per client IP with a token bucket each.
// The least recently seen clients are evicted once the table is full.
type RateLimiter struct {
	limiters *lru.Cache
	limit    rate.Limit
	burst    int
	logger   *logrus.Logger
}

// NewRateLimiter creates a per-client limiter allowing rps requests per second with
// the given burst.
func NewRateLimiter(rps float64, burst int, logger *logrus.Logger) (*RateLimiter, error) {
	return NewRateLimiterWithSize(rps, burst, defaultLimiterTableSize, logger)
}

// NewRateLimiterWithSize is NewRateLimiter with an explicit limiter table size.
func NewRateLimiterWithSize(rps float64, burst, size int, logger *logrus.Logger) (*RateLimiter, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &RateLimiter{
		limiters: cache,
		limit:    rate.Limit(rps),
		burst:    burst,
		logger:   logger,
	}, nil
}

// Allow reports whether the client may make a request now.
func (rl *RateLimiter) Allow(clientID string) bool {
	return rl.limiterFor(clientID).Allow()
}

// Tracked returns the number of clients currently holding a limiter.
func (rl *RateLimiter) Tracked() int {
	return rl.limiters.Len()
}

func (rl *RateLimiter) limiterFor(clientID string) *rate.Limiter {
	if v, ok := rl.limiters.Get(clientID); ok {
		return v.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rl.limit, rl.burst)
	// A concurrent first request may have stored one already
	if existing, ok, _ := rl.limiters.PeekOrAdd(clientID, limiter); ok {
		return existing.(*rate.Limiter)
	}
	return limiter
}

// Middleware rejects requests over the client's budget with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if rl.Allow(clientIP) {
			c.Next()
			return
		}

		requestID := c.GetString(CorrelationIDKey)
		rl.logger.WithFields(logrus.Fields{
			"client_ip":      clientIP,
			"path":           c.Request.URL.Path,
			"correlation_id": requestID,
		}).Warn("Rate limit exceeded")

		retryAfter := time.Duration(float64(time.Second) / float64(rl.limit))
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests,
			domain.NewAPIError(domain.ErrRateLimit, "Too many requests", "", requestID))
	}
}
