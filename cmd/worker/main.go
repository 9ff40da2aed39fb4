package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/lelang/item-service/internal/adapters/database"
	"github.com/lelang/item-service/internal/adapters/events"
	"github.com/lelang/item-service/internal/config"
	"github.com/lelang/item-service/migrations"
	pkgdb "github.com/lelang/item-service/pkg/database"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load environment variables (local overrides .env)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("Worker failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// 1. Initialize Postgres Connection Pool
	pool, err := pkgdb.Connect(ctx, cfg.DatabaseURL, pkgdb.PoolOptions{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("Postgres Connected")

	// 2. Connect sinks and build one relay per sink
	producer, err := events.NewItemEventsProducer(ctx, pool, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := producer.Close(); closeErr != nil {
			logger.Warn("Failed to close event sinks", "error", closeErr)
		}
	}()

	// 3. The worker may boot before the api on a fresh database
	if err := prepareOutbox(ctx, pool, producer.Sinks(), logger); err != nil {
		return err
	}

	logger.Info("Starting Item Events Producer...", "sinks", producer.Sinks())
	// Run returns nil on context cancel.
	return producer.Run(ctx)
}

// prepareOutbox applies pending migrations and logs each sink's backlog.
// Backlog errors are only logged.
func prepareOutbox(ctx context.Context, pool *pgxpool.Pool, sinks []string, logger *slog.Logger) error {
	if err := pkgdb.EnsureSchema(ctx, pool, migrations.FS); err != nil {
		return err
	}

	outboxRepo := database.NewPostgresOutboxRepository(pool)
	for _, sink := range sinks {
		backlog, err := outboxRepo.CountUndelivered(ctx, sink)
		if err != nil {
			logger.Warn("Failed to count outbox backlog", "sink", sink, "error", err)
			continue
		}
		logger.Info("Outbox backlog", "sink", sink, "pending", backlog)
	}
	return nil
}
