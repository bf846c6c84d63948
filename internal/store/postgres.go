package store

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lightbox-cli/internal/db"
	"github.com/sells-group/lightbox-cli/internal/geo"
	"github.com/sells-group/lightbox-cli/pkg/geocode"
)

// PostgresStore implements Store using pgxpool. Result rows carry a PostGIS
// point so runs can be queried spatially.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 4
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const resultsTable = "geocode_results"

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS geocode_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	batch_size INTEGER NOT NULL,
	total      INTEGER NOT NULL,
	matched    INTEGER NOT NULL,
	no_match   INTEGER NOT NULL,
	failed     INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS geocode_results (
	run_id           TEXT NOT NULL REFERENCES geocode_runs(id) ON DELETE CASCADE,
	row_idx          INTEGER NOT NULL,
	address          TEXT NOT NULL,
	outcome          TEXT NOT NULL,
	latitude         DOUBLE PRECISION,
	longitude        DOUBLE PRECISION,
	confidence_score DOUBLE PRECISION,
	precision_code   TEXT,
	status_code      INTEGER,
	geom             geometry(Point, 4326),
	PRIMARY KEY (run_id, row_idx)
);

CREATE INDEX IF NOT EXISTS idx_geocode_runs_created_at ON geocode_runs(created_at);
CREATE INDEX IF NOT EXISTS idx_geocode_results_geom ON geocode_results USING GIST (geom);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun inserts the run row and COPYs every result row in one transaction.
func (s *PostgresStore) SaveRun(ctx context.Context, run *Run, table geocode.Table) error {
	prepareRun(run, uuid.NewString)

	rows := make([][]any, len(table))
	for i, r := range table {
		var point any
		if r.Matched() {
			wkb, err := geo.PointEWKB(r.Latitude, r.Longitude)
			if err != nil {
				return eris.Wrapf(err, "postgres: encode row %d", i)
			}
			point = wkb
		}
		rows[i] = append(resultRecord(run.ID, i, r), point)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = tx.Exec(ctx,
		`INSERT INTO geocode_runs (id, source, batch_size, total, matched, no_match, failed, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Source, run.BatchSize, run.Total, run.Matched, run.NoMatch, run.Failed, run.CreatedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert run")
	}

	if _, err := db.CopyFrom(ctx, tx, resultsTable, slices.Concat(resultColumns, []string{"geom"}), rows); err != nil {
		return eris.Wrap(err, "postgres: copy results")
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, batch_size, total, matched, no_match, failed, created_at FROM geocode_runs WHERE id = $1`,
		runID,
	)
	r, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, batch_size, total, matched, no_match, failed, created_at FROM geocode_runs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) Results(ctx context.Context, runID string) (geocode.Table, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT address, outcome, latitude, longitude, confidence_score, precision_code, status_code FROM geocode_results WHERE run_id = $1 ORDER BY row_idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query results %s", runID)
	}
	defer rows.Close()

	table := geocode.Table{}
	for rows.Next() {
		var (
			address, outcome string
			lat, lon, score  sql.NullFloat64
			precision        sql.NullString
			status           sql.NullInt64
		)
		if err := rows.Scan(&address, &outcome, &lat, &lon, &score, &precision, &status); err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		r, err := scanResult(address, outcome, lat, lon, score, precision, status)
		if err != nil {
			return nil, err
		}
		table = append(table, r)
	}
	return table, eris.Wrap(rows.Err(), "postgres: results iterate")
}
