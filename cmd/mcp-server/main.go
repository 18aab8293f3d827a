package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cvd-risk-mcp-server/internal/app"
	"github.com/cvd-risk-mcp-server/internal/config"
	"github.com/cvd-risk-mcp-server/internal/mcp"
)

func main() {
	_ = godotenv.Load()

	configManager, err := config.NewManagerFromFile(os.Getenv("CVD_RISK_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()

	// stdout carries the MCP protocol.
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	logger, err := app.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize services")
	}
	defer components.Close()

	server := mcp.NewServer(cfg.MCP, components.Calculator, logger)
	if components.AuditStore != nil {
		server.RegisterAuditTools(components.AuditStore)
	}
	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server stopped with error")
		return
	}
	logger.Info("CVD risk MCP server stopped")
}
