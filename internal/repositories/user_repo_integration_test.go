//go:build integration

package repositories

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/authcore/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDatabase starts a Postgres container and applies the embedded migrations
func setupTestDatabase(t *testing.T) *database.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("authcore"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := database.New(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, db.Migrate(ctx))

	return db
}

func TestUserRepository_Contract(t *testing.T) {
	db := setupTestDatabase(t)

	runUserStoreContract(t, func(t *testing.T) userStore {
		_, err := db.Pool.Exec(context.Background(), "TRUNCATE TABLE users")
		require.NoError(t, err)
		return NewUserRepository(db, newTestPreparer())
	})
}

func TestUserRepository_MigrateIsIdempotent(t *testing.T) {
	db := setupTestDatabase(t)

	require.NoError(t, db.Migrate(context.Background()))
}
