package mcp

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/audit"
	"github.com/cvd-risk-mcp-server/internal/cache"
	litecfg "github.com/cvd-risk-mcp-server/internal/config"
	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/internal/service"
)

// LiteServer is a lightweight MCP server that requires no external services.
// It uses an in-memory result cache and audits to SQLite.
type LiteServer struct {
	config     *litecfg.LiteConfig
	server     *Server
	auditStore audit.Store
	cache      *cache.MemoryCache
	logger     *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithAuditStore sets a custom audit store.
func WithAuditStore(store audit.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.auditStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		logger: logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		server.logger.SetLevel(level)
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	memCache := cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	server.cache = memCache

	calcOpts := []service.CalculatorOption{service.WithResultCache(memCache, cfg.CacheTTL)}

	if cfg.AuditEnabled {
		if server.auditStore == nil {
			store, err := audit.NewSQLiteStore(cfg.AuditDBPath())
			if err != nil {
				return nil, fmt.Errorf("failed to create audit store: %w", err)
			}
			server.auditStore = store
		}
		calcOpts = append(calcOpts, service.WithRecorder(audit.NewRecorder(server.auditStore)))
	}

	calculator := service.NewCalculatorService(server.logger, calcOpts...)
	server.server = NewServer(domain.MCPConfig{
		ServerName:    "cvd-risk-mcp-server-lite",
		ServerVersion: "v1.0.0",
		TransportType: cfg.Transport,
	}, calculator, server.logger)
	if server.auditStore != nil {
		server.server.RegisterAuditTools(server.auditStore)
	}

	server.logger.WithFields(logrus.Fields{
		"data_dir":      cfg.DataDir,
		"audit_enabled": cfg.AuditEnabled,
		"cache_items":   cfg.CacheMaxItems,
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Start runs the MCP server until ctx is cancelled or the client disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	return s.server.Run(ctx)
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.auditStore != nil {
		if err := s.auditStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close audit store")
			return err
		}
	}
	return nil
}

// AuditStore returns the audit store, or nil when auditing is disabled.
func (s *LiteServer) AuditStore() audit.Store {
	return s.auditStore
}

// Cache returns the memory cache.
func (s *LiteServer) Cache() *cache.MemoryCache {
	return s.cache
}

// Tools returns the registered tool names.
func (s *LiteServer) Tools() []string {
	return s.server.ToolNames()
}
