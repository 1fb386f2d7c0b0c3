package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/launchkit-dev/launchkit/internal/config"
	"github.com/launchkit-dev/launchkit/internal/database"
	"github.com/launchkit-dev/launchkit/internal/logger"
	"github.com/launchkit-dev/launchkit/internal/models"
	"github.com/launchkit-dev/launchkit/internal/session"
	"github.com/launchkit-dev/launchkit/internal/tasks"
	"github.com/launchkit-dev/launchkit/internal/workers"
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

	log.Info().Str("version", version).Msg("Starting Launchkit worker")

	schedule, err := workers.ParseSchedule(cfg.Worker.PurgeSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid purge schedule")
	}

	db, err := database.Open(cfg.Database.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close(db)

	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	store := session.NewStore(db)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Address}

	// Initialize Asynq client for the scheduler
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	asynqServer := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			"default": 3,
			"low":     1,
		},
		Logger: &asynqLogger{log: log},
	})

	// Register task handlers
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypePurgeExpiredSessions, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandlePurgeExpiredSessions(ctx, t, store, log)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go workers.StartPurgeScheduler(ctx, asynqClient, schedule, log)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("schedule", cfg.Worker.PurgeSchedule).Msg("Starting Asynq worker server...")
		if err := asynqServer.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Asynq worker server failed")
		}
	}()

	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	cancel()
	asynqServer.Shutdown()

	log.Info().Msg("Worker shutdown complete")
}

// asynqLogger is a wrapper to make zerolog compatible with Asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprint(args...))
}
