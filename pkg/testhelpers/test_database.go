package testhelpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	tclog "github.com/testcontainers/testcontainers-go/log"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lelang/item-service/migrations"
	"github.com/lelang/item-service/pkg/database"
)

// TestDatabase is a Postgres running in a throwaway container
type TestDatabase struct {
	Container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
	ConnStr   string
}

// NewTestDatabase starts Postgres and applies the embedded migrations
func NewTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()

	td := NewEmptyTestDatabase(t)
	if err := database.EnsureSchema(context.Background(), td.Pool, migrations.FS); err != nil {
		td.Close()
		t.Fatalf("failed to run migrations: %s", err)
	}
	return td
}

// NewEmptyTestDatabase starts Postgres without any schema
func NewEmptyTestDatabase(t *testing.T) *TestDatabase {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(tclog.TestLogger(t)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %s", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	pool, err := database.Connect(ctx, connStr, database.PoolOptions{})
	if err != nil {
		t.Fatalf("failed to connect to database: %s", err)
	}

	return &TestDatabase{
		Container: pgContainer,
		Pool:      pool,
		ConnStr:   connStr,
	}
}

// Reset empties every table and restarts the item id sequence
func (td *TestDatabase) Reset(t *testing.T) {
	t.Helper()
	_, err := td.Pool.Exec(context.Background(), `TRUNCATE items, outbox_events RESTART IDENTITY`)
	if err != nil {
		t.Fatalf("failed to reset database: %s", err)
	}
}

// Close releases the pool and stops the container
func (td *TestDatabase) Close() {
	ctx := context.Background()
	td.Pool.Close()
	if termErr := td.Container.Terminate(ctx); termErr != nil {
		fmt.Printf("failed to terminate container: %v\n", termErr)
	}
}
