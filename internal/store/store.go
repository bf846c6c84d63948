// Package store persists batch geocode runs to SQLite or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lightbox-cli/pkg/geocode"
)

// Run describes one persisted batch.
type Run struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	BatchSize int       `json:"batch_size"`
	Total     int       `json:"total"`
	Matched   int       `json:"matched"`
	NoMatch   int       `json:"no_match"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRun builds the Run record for a completed table.
func NewRun(source string, batchSize int, table geocode.Table) *Run {
	s := table.Summary()
	return &Run{
		Source:    source,
		BatchSize: batchSize,
		Total:     s.Total,
		Matched:   s.Matched,
		NoMatch:   s.NoMatch,
		Failed:    s.Failed,
	}
}

// Store defines the persistence interface for geocode runs.
type Store interface {
	// SaveRun stores the run and all of its rows atomically. An empty run.ID
	// is filled with a new UUID; run.CreatedAt is set when zero.
	SaveRun(ctx context.Context, run *Run, table geocode.Table) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	// Results returns a run's rows in their original order.
	Results(ctx context.Context, runID string) (geocode.Table, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for driver ("sqlite" or "postgres") and migrates it.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		s   Store
		err error
	)
	switch driver {
	case "sqlite", "":
		if dsn == "" {
			dsn = "lightbox.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		if dsn == "" {
			return nil, eris.New("store: postgres requires store.database_url")
		}
		s, err = NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close() //nolint:errcheck
		return nil, err
	}
	return s, nil
}

// resultColumns are the columns of geocode_results shared by both backends.
var resultColumns = []string{
	"run_id", "row_idx", "address", "outcome",
	"latitude", "longitude", "confidence_score", "precision_code", "status_code",
}

// resultRecord flattens a row for insertion. Coordinates and status are NULL
// when they do not apply to the row's outcome.
func resultRecord(runID string, idx int, r geocode.Row) []any {
	rec := []any{runID, idx, r.Address, r.Outcome.String(), nil, nil, nil, nil, nil}
	switch r.Outcome {
	case geocode.OutcomeMatched:
		rec[4], rec[5], rec[6], rec[7] = r.Latitude, r.Longitude, r.ConfidenceScore, r.PrecisionCode
	case geocode.OutcomeFailed:
		rec[8] = r.StatusCode
	}
	return rec
}

// scanResult rebuilds a Row from the nullable result columns.
func scanResult(address, outcome string, lat, lon, score sql.NullFloat64, precision sql.NullString, status sql.NullInt64) (geocode.Row, error) {
	switch outcome {
	case geocode.OutcomeMatched.String():
		return geocode.Row{
			Address:         address,
			Outcome:         geocode.OutcomeMatched,
			Latitude:        lat.Float64,
			Longitude:       lon.Float64,
			ConfidenceScore: score.Float64,
			PrecisionCode:   precision.String,
		}, nil
	case geocode.OutcomeNoMatch.String():
		return geocode.NoMatchRow(address), nil
	case geocode.OutcomeFailed.String():
		return geocode.FailedRow(address, int(status.Int64)), nil
	default:
		return geocode.Row{}, eris.Errorf("store: unknown outcome %q", outcome)
	}
}

func prepareRun(run *Run, newID func() string) {
	if run.ID == "" {
		run.ID = newID()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
