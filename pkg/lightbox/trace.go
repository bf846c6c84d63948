package lightbox

import (
	"net/http"
	"net/http/httputil"
	"time"

	"go.uber.org/zap"
)

// traceTransport dumps requests and responses to the debug log. The API key
// header is redacted before dumping.
type traceTransport struct {
	base     http.RoundTripper
	dumpBody bool
}

func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	logged := req.Clone(req.Context())
	if logged.Header.Get(apiKeyHeader) != "" {
		logged.Header.Set(apiKeyHeader, "REDACTED")
	}
	if dump, err := httputil.DumpRequestOut(logged, false); err == nil {
		zap.L().Debug("lightbox: request", zap.ByteString("dump", dump))
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	if err != nil {
		zap.L().Debug("lightbox: transport error",
			zap.String("url", req.URL.Redacted()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	if dump, dumpErr := httputil.DumpResponse(resp, t.dumpBody); dumpErr == nil {
		zap.L().Debug("lightbox: response",
			zap.Int("status", resp.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
			zap.ByteString("dump", dump),
		)
	}
	return resp, nil
}
