package geocode

import (
	"fmt"
	"strconv"
)

// Outcome classifies a single address lookup.
type Outcome int

const (
	// OutcomeMatched means the service returned at least one match.
	OutcomeMatched Outcome = iota
	// OutcomeNoMatch means the call succeeded with an empty match list.
	OutcomeNoMatch
	// OutcomeFailed means the service answered with a non-2xx status.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeMatched:
		return "matched"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Sentinel cell values written in place of coordinates.
const (
	NoMatchValue = "No match"
	FailedValue  = "Failed"
)

// Columns are the output column names, in order.
var Columns = []string{"address", "latitude", "longitude", "confidence_score", "precision_code"}

// Row is the result for one input address.
type Row struct {
	Address         string
	Outcome         Outcome
	Latitude        float64
	Longitude       float64
	ConfidenceScore float64
	PrecisionCode   string
	StatusCode      int
}

// NoMatchRow builds the row for a successful call with no matches.
func NoMatchRow(addr string) Row {
	return Row{Address: addr, Outcome: OutcomeNoMatch}
}

// FailedRow builds the row for a call answered with a non-2xx status.
func FailedRow(addr string, statusCode int) Row {
	return Row{Address: addr, Outcome: OutcomeFailed, StatusCode: statusCode}
}

// Matched reports whether the row carries coordinates.
func (r Row) Matched() bool { return r.Outcome == OutcomeMatched }

// StatusText is the longitude cell of a failed row.
func (r Row) StatusText() string {
	return fmt.Sprintf("Status Code: %d", r.StatusCode)
}

// Values returns the row's cells in Columns order. Matched rows carry
// float64 coordinates and score; other rows carry sentinel strings.
func (r Row) Values() []any {
	switch r.Outcome {
	case OutcomeMatched:
		return []any{r.Address, r.Latitude, r.Longitude, r.ConfidenceScore, r.PrecisionCode}
	case OutcomeNoMatch:
		return []any{r.Address, NoMatchValue, NoMatchValue, NoMatchValue, NoMatchValue}
	default:
		return []any{r.Address, FailedValue, r.StatusText(), FailedValue, FailedValue}
	}
}

// Record returns the row's cells in Columns order, rendered as strings.
func (r Row) Record() []string {
	vals := r.Values()
	rec := make([]string, len(vals))
	for i, v := range vals {
		switch v := v.(type) {
		case float64:
			rec[i] = strconv.FormatFloat(v, 'f', -1, 64)
		case string:
			rec[i] = v
		default:
			rec[i] = fmt.Sprint(v)
		}
	}
	return rec
}

// Table is the ordered result of a batch, one Row per input address.
type Table []Row

// Records renders every row with Record.
func (t Table) Records() [][]string {
	out := make([][]string, len(t))
	for i, r := range t {
		out[i] = r.Record()
	}
	return out
}

// Summary counts rows per outcome.
type Summary struct {
	Total   int
	Matched int
	NoMatch int
	Failed  int
}

// Summary tallies the table's outcomes.
func (t Table) Summary() Summary {
	s := Summary{Total: len(t)}
	for _, r := range t {
		switch r.Outcome {
		case OutcomeMatched:
			s.Matched++
		case OutcomeNoMatch:
			s.NoMatch++
		case OutcomeFailed:
			s.Failed++
		}
	}
	return s
}
