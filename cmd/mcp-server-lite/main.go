// Package main provides the lightweight entry point for the CVD risk MCP server.
// This version requires no external services: it caches in memory and audits to SQLite.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cvd-risk-mcp-server/internal/config"
	"github.com/cvd-risk-mcp-server/internal/mcp"
	"github.com/cvd-risk-mcp-server/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		cli := setup.NewCLI("lite")
		if err := cli.Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	_ = godotenv.Load()
	cfg := config.LoadLiteConfig()

	// The standard logger writes to stderr; stdout carries the MCP protocol.
	log.Printf("Starting CVD risk MCP server (lite) with transport: %s", cfg.Transport)
	log.Printf("Data directory: %s", cfg.DataDir)

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Printf("MCP server failed: %v", err)
		return
	}

	log.Println("CVD risk MCP server (lite) stopped")
}
