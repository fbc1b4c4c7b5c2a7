package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"pump-signals/internal/storage/migrations"
	"pump-signals/internal/storage/postgres"
)

// setupTestDB creates a PostgreSQL container for testing and applies
// migrations. Returns a cleanup function that must be called after tests
// complete.
func setupTestDB(t *testing.T) (*postgres.Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := pgcontainer.Run(ctx, "postgres:15-alpine",
		pgcontainer.WithDatabase("testdb"),
		pgcontainer.WithUsername("test"),
		pgcontainer.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := postgres.NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgres(ctx, pool), "failed to run migrations")

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// truncateSignals clears the signals table between subtests.
func truncateSignals(t *testing.T, pool *postgres.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE signals`)
	require.NoError(t, err, "failed to truncate signals")
}
