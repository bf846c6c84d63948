// Package server exposes a small HTTP proxy in front of the LightBox API so
// browser clients can use autocomplete and parcel maps without holding the
// API key.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/lightbox-cli/internal/geo"
	"github.com/sells-group/lightbox-cli/pkg/lightbox"
)

// Upstream is the subset of the LightBox client the proxy forwards to.
type Upstream interface {
	SearchAddress(ctx context.Context, text string) (*lightbox.Response, error)
	Autocomplete(ctx context.Context, text, countryCode string) (*lightbox.Response, error)
	AdjacentParcels(ctx context.Context, countryCode, id string, commonOwnership bool) (*lightbox.Response, error)
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	Logger         *zap.Logger
	// Registry receives the proxy series and backs /metrics. Nil creates a
	// private registry with the runtime collectors.
	Registry *prometheus.Registry
}

type handler struct {
	upstream Upstream
	log      *zap.Logger
	metrics  *proxyMetrics
}

// New builds the proxy router.
func New(upstream Upstream, opts Options) http.Handler {
	reg := opts.Registry
	if reg == nil {
		reg = newRegistry()
	}
	h := &handler{upstream: upstream, log: opts.Logger, metrics: newProxyMetrics(reg)}
	if h.log == nil {
		h.log = zap.L()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(h.metrics.instrument)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/addresses/search", h.search)
		r.Get("/autocomplete", h.autocomplete)
		r.Get("/parcels/{countryCode}/{id}/adjacent.geojson", h.adjacentGeoJSON)
	})

	return r
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("text"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := h.upstream.SearchAddress(r.Context(), text)
	h.forward(w, r, "search", resp, err)
}

func (h *handler) autocomplete(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	text := strings.TrimSpace(q.Get("text"))
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	countryCode := q.Get("countryCode")
	if countryCode == "" {
		countryCode = "US"
	}

	resp, err := h.upstream.Autocomplete(r.Context(), text, countryCode)
	h.forward(w, r, "autocomplete", resp, err)
}

func (h *handler) adjacentGeoJSON(w http.ResponseWriter, r *http.Request) {
	countryCode := chi.URLParam(r, "countryCode")
	id := chi.URLParam(r, "id")

	commonOwnership := false
	if v := r.URL.Query().Get("commonOwnership"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "commonOwnership must be true or false")
			return
		}
		commonOwnership = b
	}

	resp, err := h.upstream.AdjacentParcels(r.Context(), countryCode, id, commonOwnership)
	if err != nil || !resp.OK() {
		h.forward(w, r, "adjacent", resp, err)
		return
	}
	h.metrics.upstreamResult("adjacent", resp, nil)

	var body lightbox.AdjacentParcelsResponse
	if err := resp.Decode(&body); err != nil {
		h.log.Error("server: decode adjacent parcels", zap.String("parcel_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "invalid upstream response")
		return
	}

	fc, err := geo.AdjacentToGeoJSON(body.Parcels)
	if err != nil {
		h.log.Error("server: convert adjacent parcels", zap.String("parcel_id", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, "invalid parcel geometry")
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(fc); err != nil {
		h.log.Debug("server: write geojson", zap.Error(err))
	}
}

// forward relays the upstream status and body unchanged. A transport failure
// becomes 502.
func (h *handler) forward(w http.ResponseWriter, r *http.Request, endpoint string, resp *lightbox.Response, err error) {
	if err != nil {
		h.metrics.upstreamResult(endpoint, nil, err)
		h.log.Error("server: upstream request failed",
			zap.String("endpoint", endpoint),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}

	h.metrics.upstreamResult(endpoint, resp, nil)
	if !resp.OK() {
		h.log.Warn("server: upstream returned error status",
			zap.String("endpoint", endpoint),
			zap.Int("status_code", resp.StatusCode),
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
