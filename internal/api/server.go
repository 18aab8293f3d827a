// Package api exposes the risk calculator over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/audit"
	"github.com/cvd-risk-mcp-server/internal/domain"
	"github.com/cvd-risk-mcp-server/internal/middleware"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

const shutdownTimeout = 30 * time.Second

// AssessmentStore reads persisted assessments and links them to EMR resources.
type AssessmentStore interface {
	Get(ctx context.Context, id string) (*domain.Assessment, error)
	AttachEMRReference(ctx context.Context, id, patientRef, resourceID string) error
}

// HealthCheck checks one dependency.
type HealthCheck func(ctx context.Context) error

// Option configures optional collaborators of the server.
type Option func(*Server)

// WithAuditStore enables the audit listing and export endpoints.
func WithAuditStore(store audit.Store) Option {
	return func(s *Server) {
		s.auditStore = store
	}
}

// WithAssessmentStore enables assessment lookup by id.
func WithAssessmentStore(store AssessmentStore) Option {
	return func(s *Server) {
		s.assessments = store
	}
}

// WithPublisher enables ?publish=true on the combined assessment endpoint.
func WithPublisher(publisher domain.AssessmentPublisher) Option {
	return func(s *Server) {
		s.publisher = publisher
	}
}

// WithHealthCheck adds a named dependency check to /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks[name] = check
	}
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	calculator    domain.RiskCalculator
	logger        *logrus.Logger
	auditStore    audit.Store
	assessments   AssessmentStore
	publisher     domain.AssessmentPublisher
	healthChecks  map[string]HealthCheck
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, calculator domain.RiskCalculator, logger *logrus.Logger, opts ...Option) (*Server, error) {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		configManager: configManager,
		calculator:    calculator,
		logger:        logger,
		healthChecks:  make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	if cfg.RateLimit.Enabled {
		limiter, err := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
		router.Use(limiter.Middleware())
	}

	s.router = router
	s.setupRoutes()

	return s, nil
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	s.logger.WithFields(logrus.Fields{
		"addr": addr,
		"tls":  cfg.TLSEnabled,
	}).Info("HTTP server listening")

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/risk/framingham", s.handleFramingham)
		v1.POST("/risk/qrisk3", s.handleQRISK3)
		v1.POST("/risk/assess", s.handleAssess)
		v1.POST("/recommendations", s.handleRecommendations)
		v1.POST("/compare", s.handleCompare)
		v1.POST("/units/convert", s.handleConvert)

		if s.auditStore != nil {
			v1.GET("/audit", s.handleListAudit)
			v1.GET("/audit/export.json", s.handleExportAuditJSON)
			v1.GET("/audit/export.xlsx", s.handleExportAuditXLSX)
			v1.POST("/audit/import", s.handleImportAudit)
			v1.DELETE("/audit/:id", s.handleDeleteAudit)
		}
		if s.assessments != nil {
			v1.GET("/assessments/:id", s.handleGetAssessment)
		}
	}
}
