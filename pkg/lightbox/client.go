// Package lightbox provides a client for the LightBox real-estate data API.
package lightbox

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultBaseURL is the production LightBox API root.
const DefaultBaseURL = "https://api.lightboxre.com/v1"

// apiKeyHeader carries the caller's credential on every request.
const apiKeyHeader = "x-api-key"

// Client defines the LightBox API operations. Every method performs exactly one
// GET request. A non-nil error means the request could not complete (transport
// fault); any HTTP status, including 4xx/5xx, is returned in the Response.
type Client interface {
	// Get issues a GET against path (relative to the base URL) with the given query.
	Get(ctx context.Context, path string, query url.Values) (*Response, error)

	// SearchAddress geocodes a free-form address string.
	SearchAddress(ctx context.Context, text string) (*Response, error)
	// Autocomplete suggests addresses for a partial address.
	Autocomplete(ctx context.Context, text, countryCode string) (*Response, error)
	// Reverse finds addresses near a WKT geometry.
	Reverse(ctx context.Context, req ReverseRequest) (*Response, error)

	// Parcel fetches a parcel by LightBox ID.
	Parcel(ctx context.Context, countryCode, id string) (*Response, error)
	// AdjacentParcels fetches the parcels adjacent to a parcel.
	AdjacentParcels(ctx context.Context, countryCode, id string, commonOwnership bool) (*Response, error)
	// Zoning fetches the zoning records intersecting a parcel.
	Zoning(ctx context.Context, countryCode, id string) (*Response, error)
	// Wetlands fetches the wetlands intersecting a US parcel.
	Wetlands(ctx context.Context, id string) (*Response, error)
	// FloodZones fetches the NFHL flood hazard areas intersecting a US parcel.
	FloodZones(ctx context.Context, id string) (*Response, error)
	// Demographics fetches the demographics for a US parcel.
	Demographics(ctx context.Context, id string) (*Response, error)
}

// Response is the status and raw JSON body of a LightBox API call.
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// OK reports whether the status code is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return eris.New("lightbox: empty response body")
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return eris.Wrap(err, "lightbox: unmarshal response")
	}
	return nil
}

// Option configures the LightBox client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing or a regional endpoint).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client. A nil client is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithTrace logs every request and response at debug level.
func WithTrace(dumpBody bool) Option {
	return func(c *httpClient) {
		c.http.Transport = &traceTransport{base: c.http.Transport, dumpBody: dumpBody}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new LightBox API client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "lightbox: create request")
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "lightbox: GET %s", path)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "lightbox: read response body for %s", path)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
