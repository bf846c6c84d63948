package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lightbox-cli/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	batch_size INTEGER NOT NULL,
	total      INTEGER NOT NULL,
	matched    INTEGER NOT NULL,
	no_match   INTEGER NOT NULL,
	failed     INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS geocode_results (
	run_id           TEXT NOT NULL REFERENCES geocode_runs(id) ON DELETE CASCADE,
	row_idx          INTEGER NOT NULL,
	address          TEXT NOT NULL,
	outcome          TEXT NOT NULL,
	latitude         REAL,
	longitude        REAL,
	confidence_score REAL,
	precision_code   TEXT,
	status_code      INTEGER,
	PRIMARY KEY (run_id, row_idx)
);

CREATE INDEX IF NOT EXISTS idx_geocode_runs_created_at ON geocode_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_geocode_results_outcome ON geocode_results(run_id, outcome);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, table geocode.Table) error {
	prepareRun(run, uuid.NewString)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO geocode_runs (id, source, batch_size, total, matched, no_match, failed, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.BatchSize, run.Total, run.Matched, run.NoMatch, run.Failed, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO geocode_results (run_id, row_idx, address, outcome, latitude, longitude, confidence_score, precision_code, status_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare result insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range table {
		if _, err := stmt.ExecContext(ctx, resultRecord(run.ID, i, row)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert result %d", i)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, batch_size, total, matched, no_match, failed, created_at FROM geocode_runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}
	return r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, batch_size, total, matched, no_match, failed, created_at
		 FROM geocode_runs ORDER BY created_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) Results(ctx context.Context, runID string) (geocode.Table, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, outcome, latitude, longitude, confidence_score, precision_code, status_code
		 FROM geocode_results WHERE run_id = ? ORDER BY row_idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query results %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	table := geocode.Table{}
	for rows.Next() {
		var (
			address, outcome string
			lat, lon, score  sql.NullFloat64
			precision        sql.NullString
			status           sql.NullInt64
		)
		if err := rows.Scan(&address, &outcome, &lat, &lon, &score, &precision, &status); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		r, err := scanResult(address, outcome, lat, lon, score, precision, status)
		if err != nil {
			return nil, err
		}
		table = append(table, r)
	}
	return table, eris.Wrap(rows.Err(), "sqlite: results iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*Run, error) {
	var r Run
	if err := row.Scan(&r.ID, &r.Source, &r.BatchSize, &r.Total, &r.Matched, &r.NoMatch, &r.Failed, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
