// Package main is the entry point for the food diary API server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal. Its job is to:
// 1. Read configuration (from .env and the environment)
// 2. Create dependencies (logger, notifier)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/service, etc.).
//
// WHY cmd/server/?
// The cmd/ directory is a Go convention for executable entry points.
// Each executable gets its own directory with its own main.go.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/food-diary/internal/config"
	"github.com/sakif/food-diary/internal/notify"
	"github.com/sakif/food-diary/internal/server"
)

func main() {
	configFile := flag.String("config", "", "path to a .env style config file (default .env)")
	flag.Parse()

	// === 1. READ CONFIGURATION ===
	// config.Load reads .env if present, then lets environment variables
	// override it. JWT_SECRET has no default; without it the server refuses
	// to start.
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// === 2. SET UP LOGGING ===
	// Log levels (from least to most severe): Debug → Info → Warn → Error.
	// LOG_LEVEL picks the threshold; production usually runs at info.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	// === 3. DATA DIRECTORIES ===
	// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
	for _, path := range []string{cfg.Storage.DBPath, cfg.Storage.ImageCachePath} {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.Error("failed to create data directory",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// === 4. EMAIL DELIVERY ===
	// With AMQP_URL set, account emails are published to RabbitMQ for a mail
	// worker to send. Without it they are only logged, which is enough to
	// copy a verification link during local development.
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.Email.AMQPURL != "" {
		rabbit, err := notify.NewRabbitNotifier(cfg.Email.AMQPURL, cfg.Email.Exchange)
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", slog.String("error", err.Error()))
			os.Exit(1)
		}
		notifier = rabbit
		logger.Info("publishing account emails to RabbitMQ", slog.String("exchange", cfg.Email.Exchange))
	} else {
		logger.Warn("AMQP_URL not set, account emails will only be logged")
	}

	// === 5. CREATE AND START THE SERVER ===
	srv, err := server.New(cfg, notifier, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
