package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvd-risk-mcp-server/internal/cache"
	"github.com/cvd-risk-mcp-server/internal/caching"
	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/pkg/units"
)

type staticSettings struct {
	cfg *domain.Config
}

func (s staticSettings) GetConfig() *domain.Config { return s.cfg }
func (s staticSettings) GetDatabaseURL() string    { return "" }

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func baseConfig(t *testing.T) *domain.Config {
	return &domain.Config{
		Audit: domain.AuditConfig{
			Enabled:    true,
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "audit.db"),
		},
		Cache: domain.CacheConfig{
			Enabled:    true,
			MaxItems:   10,
			DefaultTTL: time.Minute,
		},
	}
}

func sampleProfile() *domain.PatientProfile {
	bmi := 27.0
	return &domain.PatientProfile{
		Age:              55,
		Sex:              domain.FEMALE,
		SystolicBP:       135,
		TotalCholesterol: domain.Measurement{Value: 5.5, Unit: units.MmolPerL},
		HDLCholesterol:   domain.Measurement{Value: 1.3, Unit: units.MmolPerL},
		BMI:              &bmi,
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(domain.LoggingConfig{Level: "debug", Format: "text", Output: "stderr"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)

	logger, err = NewLogger(domain.LoggingConfig{Level: "warn"})
	require.NoError(t, err)
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	_, err = NewLogger(domain.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	logger, err := NewLogger(domain.LoggingConfig{Level: "info", Output: path})
	require.NoError(t, err)

	logger.WithField("component", "test").Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestBuild_SQLiteAndMemoryCache(t *testing.T) {
	c, err := Build(context.Background(), staticSettings{cfg: baseConfig(t)}, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Repository)
	assert.Nil(t, c.Publisher)
	assert.IsType(t, &cache.MemoryCache{}, c.Cache)
	require.NotNil(t, c.AuditStore)

	ctx := context.Background()
	_, err = c.Calculator.AssessBoth(ctx, sampleProfile())
	require.NoError(t, err)
	_, err = c.Calculator.AssessBoth(ctx, sampleProfile())
	require.NoError(t, err)

	count, err := c.AuditStore.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Audit store plus its health check.
	assert.Len(t, c.APIOptions(), 2)
}

func TestBuild_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := baseConfig(t)
	cfg.Audit.Enabled = false
	cfg.Cache.RedisURL = "redis://" + mr.Addr()
	cfg.Cache.KeyPrefix = "test:"
	cfg.EMR = domain.EMRConfig{Enabled: true, BaseURL: "http://emr.invalid/fhir"}

	c, err := Build(context.Background(), staticSettings{cfg: cfg}, quietLogger())
	require.NoError(t, err)
	defer c.Close()

	assert.IsType(t, &caching.RedisResultCache{}, c.Cache)
	assert.NotNil(t, c.Publisher)

	_, err = c.Calculator.AssessFramingham(context.Background(), sampleProfile())
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1)
	assert.Contains(t, mr.Keys()[0], "test:")

	// Publisher plus the redis health check.
	assert.Len(t, c.APIOptions(), 2)
}

func TestBuild_UnreachableRedis(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Cache.RedisURL = "redis://127.0.0.1:1"

	_, err := Build(context.Background(), staticSettings{cfg: cfg}, quietLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Redis")
}

func TestBuild_Minimal(t *testing.T) {
	c, err := Build(context.Background(), staticSettings{cfg: &domain.Config{}}, quietLogger())
	require.NoError(t, err)
	assert.Nil(t, c.AuditStore)
	assert.Nil(t, c.Cache)
	assert.Empty(t, c.APIOptions())
	assert.NoError(t, c.Close())
}
