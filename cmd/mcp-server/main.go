package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/heart-intake-server/internal/app"
	"github.com/heart-intake-server/internal/config"
	"github.com/heart-intake-server/internal/logging"
	"github.com/heart-intake-server/internal/mcp"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	// stdout carries the MCP protocol
	cfg := configManager.GetConfig()
	logCfg := cfg.Logging
	if logCfg.Output == "" || logCfg.Output == "stdout" {
		logCfg.Output = "stderr"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, configManager, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize service")
	}
	defer rt.Close()

	logger.WithField("server", cfg.MCP.ServerName).Info("Starting heart intake MCP server")

	server := mcp.NewServer(configManager, rt.Patients, logger)
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		logger.WithError(err).Error("MCP server failed")
		return
	}

	logger.Info("MCP server stopped")
}
