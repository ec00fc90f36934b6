// Package httptransport assembles the HTTP surface: shared middleware, health
// and metrics endpoints, and the per-domain handlers.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"insurely/internal/platform/metrics"
	authmw "insurely/pkg/platform/middleware/auth"
	"insurely/pkg/platform/middleware/request"
	"insurely/pkg/platform/middleware/requesttime"
)

// Registrar mounts a domain's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck probes one backing service.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps carries everything the router needs. Nil TokenIssuer disables
// POST /dev/tokens; nil Gatherer disables GET /metrics.
type Deps struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Gatherer    prometheus.Gatherer
	Validator   authmw.JWTValidator
	TokenIssuer TokenIssuer
	Health      []HealthCheck
	Handlers    []Registrar
}

// NewRouter wires middleware and routes. Domain routes require a bearer token.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger))
	r.Use(observe(d.Metrics))

	r.Get("/healthz", healthHandler(d.Health))
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	if d.TokenIssuer != nil {
		r.With(request.ContentTypeJSON).Post("/dev/tokens", devTokenHandler(d.TokenIssuer, d.Logger))
	}

	r.Group(func(api chi.Router) {
		api.Use(request.ContentTypeJSON)
		api.Use(authmw.RequireAuth(d.Validator, d.Logger))
		for _, h := range d.Handlers {
			h.Register(api)
		}
	})
	return r
}

// observe records request count and latency by route pattern so that path
// parameters do not explode label cardinality.
func observe(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = r.Method + " " + rctx.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.ObserveHTTP(route, status, start)
		})
	}
}
