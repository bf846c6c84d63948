package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sells-group/lightbox-cli/pkg/lightbox"
)

// unmatchedEndpoint labels requests no proxy route handled, including CORS
// preflights answered by the middleware.
const unmatchedEndpoint = "unmatched"

// routeEndpoints maps chi route patterns to the endpoint label. Raw paths
// never become labels, so parcel IDs cannot grow the series set.
var routeEndpoints = map[string]string{
	"/health":              "health",
	"/metrics":             "metrics",
	"/v1/addresses/search": "search",
	"/v1/autocomplete":     "autocomplete",
	"/v1/parcels/{countryCode}/{id}/adjacent.geojson": "adjacent",
}

// proxyMetrics holds the series of one router.
type proxyMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	upstream *prometheus.CounterVec
}

func newProxyMetrics(reg prometheus.Registerer) *proxyMetrics {
	m := &proxyMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lightbox",
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Proxy requests by endpoint and response code.",
		}, []string{"endpoint", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lightbox",
			Subsystem: "proxy",
			Name:      "request_duration_seconds",
			Help:      "Proxy request latency by endpoint, upstream time included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		upstream: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lightbox",
			Name:      "upstream_requests_total",
			Help:      "Calls to the LightBox API by endpoint and upstream status, or \"error\" on transport failure.",
		}, []string{"endpoint", "outcome"}),
	}
	reg.MustRegister(m.requests, m.latency, m.upstream)
	return m
}

// newRegistry returns a registry carrying the runtime collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func endpointLabel(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return unmatchedEndpoint
	}
	if name, ok := routeEndpoints[rctx.RoutePattern()]; ok {
		return name
	}
	return unmatchedEndpoint
}

// instrument counts and times every request. The route pattern is only known
// once chi has routed, so labels are resolved after the handler returns.
func (m *proxyMetrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		endpoint := endpointLabel(r)
		m.latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	})
}

func (m *proxyMetrics) upstreamResult(endpoint string, resp *lightbox.Response, err error) {
	outcome := "error"
	if err == nil && resp != nil {
		outcome = strconv.Itoa(resp.StatusCode)
	}
	m.upstream.WithLabelValues(endpoint, outcome).Inc()
}
