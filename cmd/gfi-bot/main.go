package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"gfi-bot/internal/app"
	"gfi-bot/internal/config"
	"gfi-bot/internal/database"
	"gfi-bot/internal/github"
	"gfi-bot/internal/queue"
	"gfi-bot/internal/service"
	"gfi-bot/internal/worker"

	"github.com/rs/zerolog"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// Create logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	// Initialize database connection
	db, err := database.New(cfg.GetDSN())
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	defer db.Close()

	// Apply migrations
	if err := db.Migrate(cfg.Database.Migrations); err != nil {
		log.Fatalf("Error applying migrations: %v", err)
	}

	// Initialize GitHub client
	githubClient := github.NewClient(cfg.GitHub.Token)

	// Create service layer
	svcLogger := logger.With().Str("component", "service").Logger()
	svc := service.New(githubClient, db, cfg.Defaults, cfg.Sync.Interval, &svcLogger)

	// Create job queue
	jobQueue, err := queue.NewPostgresQueue(db.DB())
	if err != nil {
		log.Fatalf("Error creating job queue: %v", err)
	}

	// Create sync scheduler
	schedLogger := logger.With().Str("component", "scheduler").Logger()
	syncWorker := worker.NewSyncWorker(svc, jobQueue, time.Hour, cfg.Sync.Interval, schedLogger)

	// Create worker pool draining the job queue
	poolLogger := logger.With().Str("component", "worker").Logger()
	pool := worker.NewPool(jobQueue, svc, cfg.Sync.Workers, poolLogger)

	// Initialize the application
	application, err := app.New(cfg, logger, svc, jobQueue)
	if err != nil {
		log.Fatalf("Error creating application: %v", err)
	}

	// Create context that listens for the interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start background workers
	pool.Start(ctx)
	go syncWorker.Start(ctx)

	// Start the application
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Application error")
		os.Exit(1)
	}

	syncWorker.Stop()
	pool.Stop()
}
