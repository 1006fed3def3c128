// Package httptransport assembles the public HTTP surface: the middleware
// stack, the consent and GDPR routes, health endpoints and /metrics.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	dErrors "consentry/pkg/domain-errors"
	"consentry/pkg/platform/httputil"
	"consentry/pkg/platform/middleware/request"
	"consentry/pkg/platform/middleware/requesttime"
	"consentry/pkg/platform/validation"
)

// Registrar mounts a group of routes.
type Registrar interface {
	Register(r chi.Router)
}

// Config carries everything NewRouter wires.
type Config struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	TrustedProxies []netip.Prefix
	// Metrics records per-route latency; nil disables it.
	Metrics *request.Metrics
	// Gatherer backs GET /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Now overrides the request clock in tests.
	Now func() time.Time

	Health Registrar
	// API holds the consent and GDPR handlers.
	API []Registrar
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	clock := requesttime.Middleware
	if cfg.Now != nil {
		clock = requesttime.WithClock(cfg.Now)
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(request.ClientMetadata(cfg.TrustedProxies))
	r.Use(clock)
	r.Use(request.Logger(logger))
	r.Use(request.Latency(cfg.Metrics, routePattern))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeMethodNotAllowed, "method not allowed"))
	})

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(api chi.Router) {
		api.Use(request.Timeout(timeout))
		api.Use(request.ContentTypeJSON)
		api.Use(request.BodyLimit(validation.MaxBodySize))
		for _, reg := range cfg.API {
			reg.Register(api)
		}
	})

	return r
}

// routePattern keeps the latency label set bounded to registered routes.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	if p := rctx.RoutePattern(); p != "" {
		return p
	}
	return "unmatched"
}
