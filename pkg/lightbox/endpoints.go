package lightbox

import (
	"context"
	"net/url"
	"strconv"
)

// Buffer units accepted by the reverse search endpoint.
const (
	BufferMeters     = "m"
	BufferKilometers = "km"
	BufferFeet       = "ft"
	BufferMiles      = "mi"
)

// ReverseRequest holds the parameters of a reverse address search.
type ReverseRequest struct {
	WKT            string  // e.g. "POINT(-117.852723 33.63799)"
	BufferDistance float64 // in BufferUnit; 0 means the geometry itself
	BufferUnit     string  // m, km, ft or mi
	Limit          int     // 0 leaves the server default
}

func (c *httpClient) SearchAddress(ctx context.Context, text string) (*Response, error) {
	return c.Get(ctx, "/addresses/search", url.Values{"text": {text}})
}

func (c *httpClient) Autocomplete(ctx context.Context, text, countryCode string) (*Response, error) {
	q := url.Values{"text": {text}}
	if countryCode != "" {
		q.Set("countryCode", countryCode)
	}
	return c.Get(ctx, "/addresses/_autocomplete", q)
}

func (c *httpClient) Reverse(ctx context.Context, req ReverseRequest) (*Response, error) {
	unit := req.BufferUnit
	if unit == "" {
		unit = BufferMeters
	}
	q := url.Values{
		"wkt":            {req.WKT},
		"bufferDistance": {strconv.FormatFloat(req.BufferDistance, 'f', -1, 64)},
		"bufferUnit":     {unit},
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	return c.Get(ctx, "/addresses/reverse", q)
}

func (c *httpClient) Parcel(ctx context.Context, countryCode, id string) (*Response, error) {
	return c.Get(ctx, "/parcels/"+url.PathEscape(countryCode)+"/"+url.PathEscape(id), nil)
}

func (c *httpClient) AdjacentParcels(ctx context.Context, countryCode, id string, commonOwnership bool) (*Response, error) {
	q := url.Values{"commonOwnership": {strconv.FormatBool(commonOwnership)}}
	return c.Get(ctx, "/parcels/_adjacent/"+url.PathEscape(countryCode)+"/"+url.PathEscape(id), q)
}

func (c *httpClient) Zoning(ctx context.Context, countryCode, id string) (*Response, error) {
	return c.Get(ctx, "/zoning/_on/parcel/"+url.PathEscape(countryCode)+"/"+url.PathEscape(id), nil)
}

func (c *httpClient) Wetlands(ctx context.Context, id string) (*Response, error) {
	return c.Get(ctx, "/wetlands/_on/parcel/us/"+url.PathEscape(id), nil)
}

func (c *httpClient) FloodZones(ctx context.Context, id string) (*Response, error) {
	return c.Get(ctx, "/nfhls/_on/parcel/us/"+url.PathEscape(id), nil)
}

func (c *httpClient) Demographics(ctx context.Context, id string) (*Response, error) {
	return c.Get(ctx, "/demographics/_on/parcel/us/"+url.PathEscape(id), nil)
}
