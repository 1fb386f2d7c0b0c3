package main

import (
	"fmt"
	"os"

	"github.com/launchkit-dev/launchkit/internal/config"
	"github.com/launchkit-dev/launchkit/internal/logger"
	"github.com/launchkit-dev/launchkit/internal/server"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	// Create server
	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create server")
	}

	log.Info().
		Str("version", version).
		Str("cookie", cfg.Session.CookieName).
		Bool("fail_open", cfg.Session.FailOpen).
		Msg("Starting Launchkit server...")

	// Start HTTP server (this blocks)
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Server failed to start")
	}
}
