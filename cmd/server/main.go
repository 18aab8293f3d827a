package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cvd-risk-mcp-server/internal/api"
	"github.com/cvd-risk-mcp-server/internal/app"
	"github.com/cvd-risk-mcp-server/internal/config"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	configManager, err := config.NewManagerFromFile(os.Getenv("CVD_RISK_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
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

	server, err := api.NewServer(configManager, components.Calculator, logger, components.APIOptions()...)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create HTTP server")
	}

	logger.WithField("environment", cfg.Environment).Info("Starting CVD risk server")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server stopped with error")
		return
	}
	logger.Info("Server stopped")
}
