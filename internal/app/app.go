// Package app wires the configured collaborators shared by the HTTP and MCP servers.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/api"
	"github.com/cvd-risk-mcp-server/internal/audit"
	"github.com/cvd-risk-mcp-server/internal/cache"
	"github.com/cvd-risk-mcp-server/internal/caching"
	"github.com/cvd-risk-mcp-server/internal/database"
	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/internal/repository"
	"github.com/cvd-risk-mcp-server/internal/service"
	"github.com/cvd-risk-mcp-server/pkg/emr"
)

// Settings is the configuration surface the wiring needs.
type Settings interface {
	GetConfig() *domain.Config
	GetDatabaseURL() string
}

// Components holds the wired collaborators. Optional ones are nil when disabled.
type Components struct {
	Calculator *service.CalculatorService
	AuditStore audit.Store
	DB         *database.DB
	Repository *repository.AssessmentRepository
	Cache      domain.ResultCache
	Publisher  *emr.Publisher

	healthChecks map[string]api.HealthCheck
	closers      []func() error
	logger       *logrus.Logger
}

// NewLogger builds a logger from the logging configuration. Output is stdout, stderr
// or a file path.
func NewLogger(cfg domain.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
	}
	logger.SetOutput(out)

	return logger, nil
}

// Build connects every enabled collaborator and assembles the calculator. On error,
// whatever was already opened is closed.
func Build(ctx context.Context, settings Settings, logger *logrus.Logger) (*Components, error) {
	c := &Components{
		healthChecks: make(map[string]api.HealthCheck),
		logger:       logger,
	}
	if err := c.build(ctx, settings); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Components) build(ctx context.Context, settings Settings) error {
	cfg := settings.GetConfig()
	var calcOpts []service.CalculatorOption

	if cfg.Database.Enabled {
		if err := c.openDatabase(ctx, cfg.Database, settings.GetDatabaseURL()); err != nil {
			return err
		}
		calcOpts = append(calcOpts, service.WithRepository(c.Repository))
	}

	if cfg.Audit.Enabled {
		if err := c.openAudit(cfg.Audit, settings.GetDatabaseURL()); err != nil {
			return err
		}
		calcOpts = append(calcOpts, service.WithRecorder(audit.NewRecorder(c.AuditStore)))
	}

	if cfg.Cache.Enabled {
		if err := c.openCache(ctx, cfg.Cache); err != nil {
			return err
		}
		calcOpts = append(calcOpts, service.WithResultCache(c.Cache, cfg.Cache.DefaultTTL))
	}

	if cfg.EMR.Enabled {
		c.Publisher = emr.NewPublisher(cfg.EMR, c.logger)
		c.logger.WithField("base_url", cfg.EMR.BaseURL).Info("EMR publishing enabled")
	}

	c.Calculator = service.NewCalculatorService(c.logger, calcOpts...)
	return nil
}

func (c *Components) openDatabase(ctx context.Context, cfg domain.DatabaseConfig, databaseURL string) error {
	runner, err := database.NewMigrationRunner(databaseURL, cfg.MigrationsPath, c.logger)
	if err != nil {
		return fmt.Errorf("failed to create migration runner: %w", err)
	}
	err = runner.Up(ctx)
	closeErr := runner.Close()
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if closeErr != nil {
		c.logger.WithError(closeErr).Warn("Failed to close migration runner")
	}

	db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg), c.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DB = db
	c.Repository = repository.NewAssessmentRepository(db.Pool, c.logger)
	c.healthChecks["database"] = db.Health
	c.closers = append(c.closers, func() error {
		db.Close()
		return nil
	})
	return nil
}

func (c *Components) openAudit(cfg domain.AuditConfig, databaseURL string) error {
	var (
		store audit.Store
		err   error
	)
	switch cfg.Driver {
	case "postgres":
		store, err = audit.NewPostgresStoreFromURL(databaseURL)
	default:
		store, err = audit.NewSQLiteStore(cfg.SQLitePath)
	}
	if err != nil {
		return fmt.Errorf("failed to open %s audit store: %w", cfg.Driver, err)
	}

	c.AuditStore = store
	c.healthChecks["audit"] = func(ctx context.Context) error {
		_, err := store.Count(ctx)
		return err
	}
	c.closers = append(c.closers, store.Close)
	c.logger.WithField("driver", cfg.Driver).Info("Calculation audit enabled")
	return nil
}

func (c *Components) openCache(ctx context.Context, cfg domain.CacheConfig) error {
	if cfg.RedisURL == "" {
		c.Cache = cache.NewMemoryCache(cfg.MaxItems, cfg.DefaultTTL)
		c.logger.WithField("max_items", cfg.MaxItems).Info("Using in-memory result cache")
		return nil
	}

	redisCache, err := caching.NewRedisResultCache(ctx, cfg, c.logger)
	if err != nil {
		return err
	}
	c.Cache = redisCache
	c.healthChecks["redis"] = redisCache.Ping
	c.closers = append(c.closers, redisCache.Close)
	c.logger.Info("Using Redis result cache")
	return nil
}

// APIOptions returns the server options for every enabled collaborator.
func (c *Components) APIOptions() []api.Option {
	var opts []api.Option
	if c.AuditStore != nil {
		opts = append(opts, api.WithAuditStore(c.AuditStore))
	}
	if c.Repository != nil {
		opts = append(opts, api.WithAssessmentStore(c.Repository))
	}
	if c.Publisher != nil {
		opts = append(opts, api.WithPublisher(c.Publisher))
	}
	for name, check := range c.healthChecks {
		opts = append(opts, api.WithHealthCheck(name, check))
	}
	return opts
}

// Close releases resources in reverse order of acquisition.
func (c *Components) Close() error {
	var firstErr error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.closers = nil
	return firstErr
}
