package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/heart-intake-server/internal/api"
	"github.com/heart-intake-server/internal/app"
	"github.com/heart-intake-server/internal/config"
	"github.com/heart-intake-server/internal/logging"
)

func main() {
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.New(cfg.Logging)
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

	logger.WithField("address", cfg.Server.Host).WithField("port", cfg.Server.Port).
		Info("Starting heart intake server")

	server := api.NewServer(configManager, rt.Patients, logger)
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		return
	}

	logger.Info("Server stopped")
}
