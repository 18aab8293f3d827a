package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvd-risk-mcp-server/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"), "HSTS is release-mode only")
}

func TestCorrelationID(t *testing.T) {
	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CorrelationIDKey))
	})

	t.Run("generated when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		id := w.Header().Get(CorrelationIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, id, w.Body.String())
	})

	t.Run("propagated when valid", func(t *testing.T) {
		incoming := uuid.New().String()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIDHeader, incoming)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, incoming, w.Header().Get(CorrelationIDHeader))
	})

	t.Run("replaced when malformed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationIDHeader, `"},{"injected":true`)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		_, err := uuid.Parse(w.Header().Get(CorrelationIDHeader))
		assert.NoError(t, err)
	})
}

func TestRequestTimeout(t *testing.T) {
	router := gin.New()
	router.Use(RequestTimeout(20 * time.Millisecond))
	router.GET("/", func(c *gin.Context) {
		deadline, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 20*time.Millisecond)
		<-c.Request.Context().Done()
		c.Status(http.StatusGatewayTimeout)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}

func TestFormatAuditLine(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/risk/assess", nil)
	req.Header.Set("User-Agent", `agent "quoted"`)

	line := FormatAuditLine(gin.LogFormatterParams{
		Request:    req,
		TimeStamp:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		StatusCode: 200,
		Latency:    3 * time.Millisecond,
		ClientIP:   "10.0.0.1",
		Method:     http.MethodPost,
		Path:       "/api/v1/risk/assess",
		BodySize:   512,
		Keys:       map[string]any{CorrelationIDKey: "abc"},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
	assert.Equal(t, "abc", entry["correlation_id"])
	assert.Equal(t, `agent "quoted"`, entry["user_agent"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, "2026-05-01T10:00:00Z", entry["timestamp"])
}

func TestRateLimiter_Allow(t *testing.T) {
	rl, err := NewRateLimiter(1, 2, testLogger())
	require.NoError(t, err)

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "clients are limited independently")
	assert.Equal(t, 2, rl.Tracked())
}

func TestRateLimiter_TableIsBounded(t *testing.T) {
	rl, err := NewRateLimiterWithSize(1, 1, 2, testLogger())
	require.NoError(t, err)

	rl.Allow("a")
	rl.Allow("b")
	rl.Allow("c")

	assert.Equal(t, 2, rl.Tracked())
	assert.True(t, rl.Allow("a"), "an evicted client starts with a fresh bucket")
}

func TestRateLimiter_InvalidSize(t *testing.T) {
	_, err := NewRateLimiterWithSize(1, 1, 0, testLogger())
	assert.Error(t, err)
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl, err := NewRateLimiter(0.5, 1, testLogger())
	require.NoError(t, err)

	router := gin.New()
	router.Use(CorrelationID(), rl.Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	var apiErr domain.APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, domain.ErrRateLimit, apiErr.Code)
	assert.Equal(t, w.Header().Get(CorrelationIDHeader), apiErr.RequestID)
}
