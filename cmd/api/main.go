package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/lelang/item-service/internal/adapters/api"
	"github.com/lelang/item-service/internal/adapters/database"
	"github.com/lelang/item-service/internal/config"
	"github.com/lelang/item-service/internal/domain/items"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Error("Item Service API stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("Item Service API stopped")
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

	// 2. Ensure schema once at boot
	if err := pkgdb.EnsureSchema(ctx, pool, migrations.FS); err != nil {
		return err
	}
	logger.Info("Schema ready")

	// 3. Initialize Repositories (Infrastructure Layer)
	txManager := pkgdb.NewPostgresTransactionManager(pool, cfg.DBLockTimeout)
	itemRepo := database.NewPostgresItemRepository(pool)
	outboxRepo := database.NewPostgresOutboxRepository(pool)

	// 4. Initialize Service (Domain Layer)
	itemService := items.NewService(txManager, itemRepo, outboxRepo)

	// 5. Initialize API Handler
	handler := api.NewItemHandler(itemService, pool, logger)
	router := api.NewRouter(handler, logger)

	// Use h2c for HTTP/2 without TLS (internal service behind the gateway)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: h2c.NewHandler(router, &http2.Server{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting Item Service API", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down Item Service API...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
