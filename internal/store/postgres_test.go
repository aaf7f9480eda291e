package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prisma-miner/internal/domain"
)

func setupMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return store, mock
}

var runRowColumns = []string{
	"id", "label", "condition_label", "organism", "experiment", "created_at",
	"min_quality", "quality_filter", "total_identified", "total_screened",
	"total_excluded", "total_included", "flow_document",
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	pg := sqlStore{numbered: true}
	assert.Equal(t, "SELECT * FROM runs WHERE id = $1 AND label = $2", pg.rebind("SELECT * FROM runs WHERE id = ? AND label = ?"))

	lite := sqlStore{}
	assert.Equal(t, "WHERE id = ?", lite.rebind("WHERE id = ?"))
}

func TestPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_SaveRun(t *testing.T) {
	store, mock := setupMockStore(t)
	created := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	run := sampleRun("run-1", created)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).
		WithArgs("run-1", "salt", "salt stress", "Arabidopsis thaliana", "RNA-seq", created,
			50.0, true, 3, 3, 1, 2, `{"identification":{"total":3}}`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO screening_entries")).
		WithArgs("run-1", 0, created, "SRX1", "SRA", "Salt roots", "included", "", nil, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO screening_entries")).
		WithArgs("run-1", 1, created.Add(time.Second), "SRX2", "SRA", "", "excluded", "Low quality score: 42.5", 42.5, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO screening_entries")).
		WithArgs("run-1", 2, created.Add(2*time.Second), "PRJNA1", "BioProject", "", "included", "", nil, "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.SaveRun(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRunRollsBack(t *testing.T) {
	store, mock := setupMockStore(t)
	run := sampleRun("run-1", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO runs")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO screening_entries")).WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := store.SaveRun(context.Background(), run)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "screening entry 0")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	store, mock := setupMockStore(t)
	created := time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow("run-1", "salt", "salt stress", "Arabidopsis thaliana", "", created,
				50.0, true, 10, 8, 2, 6, []byte(`{"included":{"total":6}}`)))
	mock.ExpectQuery(regexp.QuoteMeta("FROM screening_entries")).
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"screened_at", "record_id", "source_database", "title", "decision", "reason", "quality_score", "notes",
		}).
			AddRow(created, "SRX1", "SRA", "", "excluded", "Low quality score: 12.0", 12.0, "").
			AddRow(created, "SRX2", "SRA", "", "included", "", nil, ""))

	run, err := store.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, 6, run.TotalIncluded)
	assert.JSONEq(t, `{"included":{"total":6}}`, string(run.Flow))
	require.Len(t, run.Entries, 2)
	require.NotNil(t, run.Entries[0].QualityScore)
	assert.Equal(t, 12.0, *run.Entries[0].QualityScore)
	assert.Nil(t, run.Entries[1].QualityScore)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRunNotFound(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM runs WHERE id = $1")).
		WithArgs("absent").
		WillReturnError(sql.ErrNoRows)

	_, err := store.GetRun(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPostgresStore_ListRunsWithLabel(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM runs WHERE label = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3")).
		WithArgs("salt", 10, 20).
		WillReturnRows(sqlmock.NewRows(runRowColumns))

	runs, err := store.ListRuns(context.Background(), ListOptions{Limit: 10, Offset: 20, Label: "salt"})
	require.NoError(t, err)
	assert.Empty(t, runs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountRuns(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM runs")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := store.CountRuns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}

func TestPostgresStore_DeleteMissing(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM screening_entries WHERE run_id = $1")).
		WithArgs("absent").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM runs WHERE id = $1")).
		WithArgs("absent").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.DeleteRun(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
