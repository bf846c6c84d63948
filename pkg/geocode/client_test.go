package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/lightbox-cli/pkg/lightbox"
)

const matchBody = `{
	"addresses": [
		{
			"id": "first",
			"location": {"representativePoint": {"latitude": 33.638, "longitude": -117.853}},
			"$metadata": {"geocode": {"confidence": {"score": 0.95}, "precisionCode": "A"}}
		},
		{
			"id": "second",
			"location": {"representativePoint": {"latitude": 1, "longitude": 2}},
			"$metadata": {"geocode": {"confidence": {"score": 0.99}, "precisionCode": "B"}}
		}
	]
}`

// fakeLookup answers from a fixed map and records call order.
type fakeLookup struct {
	responses map[string]*lightbox.Response
	errs      map[string]error
	calls     []string
}

func (f *fakeLookup) SearchAddress(_ context.Context, text string) (*lightbox.Response, error) {
	f.calls = append(f.calls, text)
	if err, ok := f.errs[text]; ok {
		return nil, err
	}
	if resp, ok := f.responses[text]; ok {
		return resp, nil
	}
	return &lightbox.Response{StatusCode: http.StatusOK, Body: []byte(`{"addresses":[]}`)}, nil
}

type countingProgress struct{ n int }

func (p *countingProgress) Add(n int) error {
	p.n += n
	return nil
}

func newObservedGeocoder(lookup Lookup) (*Geocoder, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewGeocoder(lookup, WithLogger(zap.New(core))), logs
}

func TestGeocodeBatch_Match(t *testing.T) {
	lookup := &fakeLookup{responses: map[string]*lightbox.Response{
		"X": {StatusCode: 200, Body: []byte(matchBody)},
	}}
	g, _ := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), []string{"X"}, 1)
	require.NoError(t, err)
	require.Len(t, table, 1)

	row := table[0]
	assert.Equal(t, "X", row.Address)
	assert.Equal(t, OutcomeMatched, row.Outcome)
	assert.InDelta(t, 33.638, row.Latitude, 1e-9)
	assert.InDelta(t, -117.853, row.Longitude, 1e-9)
	assert.InDelta(t, 0.95, row.ConfidenceScore, 1e-9)
	assert.Equal(t, "A", row.PrecisionCode)
	assert.Equal(t, []any{"X", 33.638, -117.853, 0.95, "A"}, row.Values())
	assert.Equal(t, []string{"X", "33.638", "-117.853", "0.95", "A"}, row.Record())
}

func TestGeocodeBatch_NoMatch(t *testing.T) {
	lookup := &fakeLookup{responses: map[string]*lightbox.Response{
		"Y": {StatusCode: 200, Body: []byte(`{"addresses":[]}`)},
	}}
	g, logs := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), []string{"Y"}, 1)
	require.NoError(t, err)
	require.Len(t, table, 1)

	assert.Equal(t, OutcomeNoMatch, table[0].Outcome)
	assert.Equal(t, []string{"Y", "No match", "No match", "No match", "No match"}, table[0].Record())
	assert.Zero(t, logs.FilterMessage("geocode: lookup failed").Len())
}

func TestGeocodeBatch_MissingAddressesKeyIsNoMatch(t *testing.T) {
	lookup := &fakeLookup{responses: map[string]*lightbox.Response{
		"Y": {StatusCode: 200, Body: []byte(`{}`)},
		"E": {StatusCode: 204},
	}}
	g, _ := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), []string{"Y", "E"}, 10)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, OutcomeNoMatch, table[0].Outcome)
	assert.Equal(t, OutcomeNoMatch, table[1].Outcome)
}

func TestGeocodeBatch_Failure(t *testing.T) {
	lookup := &fakeLookup{responses: map[string]*lightbox.Response{
		"Z": {StatusCode: 404, Body: []byte(`{"error":"not found"}`)},
	}}
	g, logs := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), []string{"Z"}, 1)
	require.NoError(t, err)
	require.Len(t, table, 1)

	assert.Equal(t, OutcomeFailed, table[0].Outcome)
	assert.Equal(t, 404, table[0].StatusCode)
	assert.Equal(t, []string{"Z", "Failed", "Status Code: 404", "Failed", "Failed"}, table[0].Record())

	failed := logs.FilterMessage("geocode: lookup failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.WarnLevel, failed[0].Level)
	assert.Equal(t, "Z", failed[0].ContextMap()["address"])
	assert.EqualValues(t, 404, failed[0].ContextMap()["status_code"])
}

func TestGeocodeBatch_FailureDoesNotStopBatch(t *testing.T) {
	lookup := &fakeLookup{responses: map[string]*lightbox.Response{
		"a": {StatusCode: 500},
		"b": {StatusCode: 200, Body: []byte(matchBody)},
		"c": {StatusCode: 401},
	}}
	g, logs := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, []string{"a", "b", "c"}, lookup.calls)
	assert.Equal(t, OutcomeFailed, table[0].Outcome)
	assert.Equal(t, OutcomeMatched, table[1].Outcome)
	assert.Equal(t, OutcomeFailed, table[2].Outcome)
	assert.Equal(t, 2, logs.FilterMessage("geocode: lookup failed").Len())
	assert.Equal(t, Summary{Total: 3, Matched: 1, Failed: 2}, table.Summary())
}

func TestGeocodeBatch_AllFailKeepsRowCount(t *testing.T) {
	addrs := make([]string, 7)
	responses := make(map[string]*lightbox.Response, len(addrs))
	for i := range addrs {
		addrs[i] = fmt.Sprintf("addr-%d", i)
		responses[addrs[i]] = &lightbox.Response{StatusCode: 503}
	}
	g, _ := newObservedGeocoder(&fakeLookup{responses: responses})

	table, err := g.GeocodeBatch(context.Background(), addrs, 3)
	require.NoError(t, err)
	require.Len(t, table, len(addrs))
	for i, row := range table {
		assert.Equal(t, addrs[i], row.Address)
		assert.Equal(t, OutcomeFailed, row.Outcome)
	}
}

func TestGeocodeBatch_OrderPreserved(t *testing.T) {
	addrs := []string{"c", "a", "b", "a", "d"}
	lookup := &fakeLookup{responses: map[string]*lightbox.Response{
		"a": {StatusCode: 200, Body: []byte(matchBody)},
		"d": {StatusCode: 400},
	}}
	g, _ := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), addrs, 2)
	require.NoError(t, err)
	require.Len(t, table, len(addrs))
	for i, row := range table {
		assert.Equal(t, addrs[i], row.Address, "row %d", i)
	}
	// Duplicates are looked up and kept, never merged.
	assert.Equal(t, addrs, lookup.calls)
}

func TestGeocodeBatch_BatchSizeIsTransparent(t *testing.T) {
	addrs := []string{"a", "b", "c", "d", "e"}
	responses := map[string]*lightbox.Response{
		"a": {StatusCode: 200, Body: []byte(matchBody)},
		"b": {StatusCode: 200, Body: []byte(`{"addresses":[]}`)},
		"c": {StatusCode: 404},
		"e": {StatusCode: 200, Body: []byte(matchBody)},
	}

	var tables []Table
	for _, size := range []int{1, 2, 3, len(addrs), 200} {
		g, _ := newObservedGeocoder(&fakeLookup{responses: responses})
		table, err := g.GeocodeBatch(context.Background(), addrs, size)
		require.NoError(t, err, "batch size %d", size)
		tables = append(tables, table)
	}
	for i := 1; i < len(tables); i++ {
		assert.Equal(t, tables[0], tables[i])
	}
}

func TestGeocodeBatch_EmptyInput(t *testing.T) {
	lookup := &fakeLookup{}
	g, _ := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), nil, 200)
	require.NoError(t, err)
	assert.NotNil(t, table)
	assert.Empty(t, table)
	assert.Empty(t, lookup.calls)
}

func TestGeocodeBatch_InvalidBatchSize(t *testing.T) {
	lookup := &fakeLookup{}
	g, _ := newObservedGeocoder(lookup)

	for _, size := range []int{0, -1} {
		_, err := g.GeocodeBatch(context.Background(), []string{"a"}, size)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch size must be positive")
	}
	assert.Empty(t, lookup.calls)
}

func TestGeocodeBatch_TransportFaultAborts(t *testing.T) {
	lookup := &fakeLookup{
		responses: map[string]*lightbox.Response{
			"a": {StatusCode: 200, Body: []byte(matchBody)},
		},
		errs: map[string]error{"b": errors.New("connection refused")},
	}
	g, _ := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), []string{"a", "b", "c"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `geocode: lookup "b"`)
	assert.Contains(t, err.Error(), "connection refused")

	// Rows already produced are returned; "c" was never attempted.
	require.Len(t, table, 1)
	assert.Equal(t, "a", table[0].Address)
	assert.Equal(t, []string{"a", "b"}, lookup.calls)
}

func TestGeocodeBatch_MalformedBodyAborts(t *testing.T) {
	lookup := &fakeLookup{responses: map[string]*lightbox.Response{
		"a": {StatusCode: 200, Body: []byte(`<html>`)},
	}}
	g, _ := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), []string{"a", "b"}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
	assert.Empty(t, table)
}

func TestGeocodeBatch_IgnoresUnreadFieldShapes(t *testing.T) {
	body := `{"addresses":[{
		"id": 12345,
		"label": {"x": 1},
		"location": {"representativePoint": {"latitude": 33.638, "longitude": -117.853}},
		"$metadata": {"geocode": {"confidence": {"score": 0.9}, "precisionCode": "A"}}
	}]}`
	lookup := &fakeLookup{responses: map[string]*lightbox.Response{
		"X": {StatusCode: http.StatusOK, Body: []byte(body)},
	}}
	g, _ := newObservedGeocoder(lookup)

	table, err := g.GeocodeBatch(context.Background(), []string{"X", "Y"}, 1)
	require.NoError(t, err)
	require.Len(t, table, 2)
	assert.Equal(t, OutcomeMatched, table[0].Outcome)
	assert.InDelta(t, 33.638, table[0].Latitude, 1e-9)
	assert.Equal(t, OutcomeNoMatch, table[1].Outcome)
	assert.Equal(t, []string{"X", "Y"}, lookup.calls)
}

func TestGeocodeBatch_ReportsProgress(t *testing.T) {
	progress := &countingProgress{}
	g := NewGeocoder(&fakeLookup{}, WithLogger(zap.NewNop()), WithProgress(progress))

	_, err := g.GeocodeBatch(context.Background(), []string{"a", "b", "c"}, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, progress.n)
}

func TestGeocodeBatch_LogsEachBatch(t *testing.T) {
	g, logs := newObservedGeocoder(&fakeLookup{})

	_, err := g.GeocodeBatch(context.Background(), []string{"a", "b", "c", "d", "e"}, 2)
	require.NoError(t, err)

	batches := logs.FilterMessage("geocode: batch complete").All()
	require.Len(t, batches, 3)
	assert.EqualValues(t, 1, batches[2].ContextMap()["size"])
	assert.EqualValues(t, 5, batches[2].ContextMap()["done"])
}

func TestGeocodeBatch_AgainstHTTPStub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/addresses/search", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))

		switch r.URL.Query().Get("text") {
		case "3121 Michelson Dr, Irvine CA 92612":
			_, _ = io.WriteString(w, matchBody)
		case "1 Nowhere Ln, Nowhere ZZ 00000":
			_, _ = io.WriteString(w, `{"addresses":[]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := lightbox.NewClient("test-key", lightbox.WithBaseURL(srv.URL))
	g, _ := newObservedGeocoder(client)

	table, err := g.GeocodeBatch(context.Background(), []string{
		"3121 Michelson Dr, Irvine CA 92612",
		"1 Nowhere Ln, Nowhere ZZ 00000",
		"25482 Buckwood Land Forest",
	}, DefaultBatchSize)
	require.NoError(t, err)
	require.Len(t, table, 3)

	assert.Equal(t, OutcomeMatched, table[0].Outcome)
	assert.Equal(t, "A", table[0].PrecisionCode)
	assert.Equal(t, OutcomeNoMatch, table[1].Outcome)
	assert.Equal(t, []string{"25482 Buckwood Land Forest", "Failed", "Status Code: 404", "Failed", "Failed"}, table[2].Record())
}
