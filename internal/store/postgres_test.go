package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var copyColumns = append(append([]string{}, resultColumns...), "geom")

func TestPostgresStore_SaveRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	table := sampleTable()
	run := NewRun("addresses.csv", 200, table)
	run.ID = "run-1"

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO geocode_runs`).
		WithArgs("run-1", "addresses.csv", 200, 3, 1, 1, 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"geocode_results"}, copyColumns).WillReturnResult(3)
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), run, table))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_GeneratesID(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	run := &Run{Source: "in.csv", BatchSize: 10}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO geocode_runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, s.SaveRun(context.Background(), run, nil))
	assert.Len(t, run.ID, 36)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_CopyFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	table := sampleTable()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO geocode_runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCopyFrom(pgx.Identifier{"geocode_results"}, copyColumns).WillReturnError(fmt.Errorf("disk full"))
	mock.ExpectRollback()

	err := s.SaveRun(context.Background(), &Run{ID: "r"}, table)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: copy results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRun_InsertFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO geocode_runs`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(fmt.Errorf("duplicate key"))
	mock.ExpectRollback()

	err := s.SaveRun(context.Background(), &Run{ID: "r"}, sampleTable())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cols := []string{"id", "source", "batch_size", "total", "matched", "no_match", "failed", "created_at"}
	mock.ExpectQuery(`SELECT id, source, batch_size, total, matched, no_match, failed, created_at FROM geocode_runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("run-1", "a.csv", 200, 3, 1, 1, 1, created))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "a.csv", run.Source)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, created, run.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM geocode_runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now().UTC()

	cols := []string{"id", "source", "batch_size", "total", "matched", "no_match", "failed", "created_at"}
	mock.ExpectQuery(`FROM geocode_runs ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(100).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("b", "b.csv", 200, 1, 1, 0, 0, now).
			AddRow("a", "a.csv", 200, 2, 0, 2, 0, now.Add(-time.Hour)))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, 2, runs[1].NoMatch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Results(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := []string{"address", "outcome", "latitude", "longitude", "confidence_score", "precision_code", "status_code"}
	mock.ExpectQuery(`FROM geocode_results WHERE run_id = \$1 ORDER BY row_idx`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("3121 Michelson Dr, Irvine CA 92612", "matched", 33.638, -117.853, 0.95, "A", nil).
			AddRow("1 Nowhere Ln", "no_match", nil, nil, nil, nil, nil).
			AddRow("bad address", "failed", nil, nil, nil, nil, int64(404)))

	table, err := s.Results(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, []string{"3121 Michelson Dr, Irvine CA 92612", "33.638", "-117.853", "0.95", "A"}, table[0].Record())
	assert.Equal(t, []string{"1 Nowhere Ln", "No match", "No match", "No match", "No match"}, table[1].Record())
	assert.Equal(t, []string{"bad address", "Failed", "Status Code: 404", "Failed", "Failed"}, table[2].Record())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Results_UnknownOutcome(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := []string{"address", "outcome", "latitude", "longitude", "confidence_score", "precision_code", "status_code"}
	mock.ExpectQuery(`FROM geocode_results`).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows(cols).AddRow("x", "exploded", nil, nil, nil, nil, nil))

	_, err := s.Results(context.Background(), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown outcome")
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS geocode_runs`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
