package database

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/prisma-miner/internal/domain"
	"github.com/prisma-miner/internal/prisma"
	"github.com/prisma-miner/internal/store"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("PostgreSQL container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	url, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise in tests
	return logger
}

func TestDatabaseConnection(t *testing.T) {
	url := startPostgres(t)
	ctx := context.Background()

	db, err := NewConnection(ctx, DefaultConfig(url), quietLogger())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Health(ctx))
	stats := db.Stats()
	assert.NotZero(t, stats.TotalConns(), "Expected at least one connection in pool")
}

func TestMigrationsAndRunStore(t *testing.T) {
	url := startPostgres(t)
	ctx := context.Background()
	logger := quietLogger()

	runner, err := NewEmbeddedMigrationRunner(url, logger)
	require.NoError(t, err)
	defer runner.Close()

	version, _, err := runner.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, runner.Up(ctx))
	require.NoError(t, runner.Up(ctx), "second up is a no-op")
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	db, err := NewConnection(ctx, DefaultConfig(url), logger)
	require.NoError(t, err)
	defer db.Close()

	runs, err := store.NewPostgresStore(db.SQL())
	require.NoError(t, err)

	created := time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)
	score := 33.0
	require.NoError(t, runs.SaveRun(ctx, &store.RunRecord{
		ID:        "run-pg",
		Label:     "salt",
		Condition: "salt stress",
		CreatedAt: created,
		Flow:      []byte(`{"identification":{"total":1}}`),
		Entries: []prisma.ScreeningEntry{{
			Timestamp: created, RecordID: "SRX1", Database: "SRA",
			Decision: prisma.DecisionExcluded, Reason: "Low quality score: 33.0", QualityScore: &score,
		}},
	}))

	got, err := runs.GetRun(ctx, "run-pg")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.JSONEq(t, `{"identification":{"total":1}}`, string(got.Flow))
	require.Len(t, got.Entries, 1)
	assert.Equal(t, 33.0, *got.Entries[0].QualityScore)

	require.NoError(t, runs.DeleteRun(ctx, "run-pg"))
	_, err = runs.GetRun(ctx, "run-pg")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, runner.Down(ctx))
	version, _, err = runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}
