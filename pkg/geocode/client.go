// Package geocode batch-geocodes address strings against the LightBox address
// search endpoint, producing one result row per input address.
package geocode

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lightbox-cli/pkg/lightbox"
)

// DefaultBatchSize is the number of addresses grouped into one batch.
const DefaultBatchSize = 200

// Lookup is the remote address search the Geocoder drives. It returns an error
// only when the request could not complete.
type Lookup interface {
	SearchAddress(ctx context.Context, text string) (*lightbox.Response, error)
}

// Progress receives one increment per processed address.
type Progress interface {
	Add(n int) error
}

// Option configures the Geocoder.
type Option func(*Geocoder)

// WithLogger sets the logger used for per-address diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(g *Geocoder) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithProgress reports progress after every address.
func WithProgress(p Progress) Option {
	return func(g *Geocoder) {
		g.progress = p
	}
}

// Geocoder resolves addresses one at a time, in order.
type Geocoder struct {
	lookup   Lookup
	logger   *zap.Logger
	progress Progress
}

// NewGeocoder creates a Geocoder backed by lookup.
func NewGeocoder(lookup Lookup, opts ...Option) *Geocoder {
	g := &Geocoder{
		lookup: lookup,
		logger: zap.L(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// GeocodeBatch geocodes addresses in sequential batches of batchSize and
// returns one Row per address, in input order. Batching only groups the work;
// it never changes which rows are produced.
//
// Non-2xx responses and empty match lists are recorded in the row and do not
// stop the run. A transport fault aborts the run: the rows produced so far are
// returned together with the error, and the remaining addresses are not
// attempted.
func (g *Geocoder) GeocodeBatch(ctx context.Context, addrs []string, batchSize int) (Table, error) {
	if batchSize < 1 {
		return nil, eris.Errorf("geocode: batch size must be positive, got %d", batchSize)
	}

	table := make(Table, 0, len(addrs))
	batchNum := 0
	for batch := range slices.Chunk(addrs, batchSize) {
		batchNum++
		for _, addr := range batch {
			row, err := g.Geocode(ctx, addr)
			if err != nil {
				return table, err
			}
			table = append(table, row)

			if g.progress != nil {
				if pErr := g.progress.Add(1); pErr != nil {
					g.logger.Debug("geocode: progress update failed", zap.Error(pErr))
				}
			}
		}
		g.logger.Debug("geocode: batch complete",
			zap.Int("batch", batchNum),
			zap.Int("size", len(batch)),
			zap.Int("done", len(table)),
			zap.Int("total", len(addrs)),
		)
	}

	return table, nil
}

// Geocode resolves a single address. The first match returned by the service
// wins; matches are not re-ranked.
func (g *Geocoder) Geocode(ctx context.Context, addr string) (Row, error) {
	resp, err := g.lookup.SearchAddress(ctx, addr)
	if err != nil {
		return Row{}, eris.Wrapf(err, "geocode: lookup %q", addr)
	}

	if !resp.OK() {
		g.logger.Warn("geocode: lookup failed",
			zap.String("address", addr),
			zap.Int("status_code", resp.StatusCode),
		)
		return FailedRow(addr, resp.StatusCode), nil
	}

	var body lightbox.AddressSearchResponse
	if len(resp.Body) > 0 {
		if err := resp.Decode(&body); err != nil {
			return Row{}, eris.Wrapf(err, "geocode: decode response for %q", addr)
		}
	}
	if len(body.Addresses) == 0 {
		return NoMatchRow(addr), nil
	}

	first := body.Addresses[0]
	return Row{
		Address:         addr,
		Outcome:         OutcomeMatched,
		Latitude:        first.Location.RepresentativePoint.Latitude,
		Longitude:       first.Location.RepresentativePoint.Longitude,
		ConfidenceScore: first.Metadata.Geocode.Confidence.Score,
		PrecisionCode:   first.Metadata.Geocode.PrecisionCode,
		StatusCode:      resp.StatusCode,
	}, nil
}
