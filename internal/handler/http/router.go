// Package http wires the HTTP API: routes, middleware, and handlers.
package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bookshelf-labs/bookshelf/pkg/health"
	"github.com/bookshelf-labs/bookshelf/pkg/metrics"
	"github.com/bookshelf-labs/bookshelf/pkg/middleware"
)

// RouterConfig collects everything the router needs.
type RouterConfig struct {
	ServiceName string
	Logger      *slog.Logger
	Metrics     *metrics.Registry
	Health      *health.Handler
	CORS        middleware.CORSConfig
	PprofCIDRs  []string

	Books   *BookHandler
	Reviews *ReviewHandler
	Demo    *DemoHandler
}

// NewRouter builds the chi router with the full middleware stack. Order
// matters: recovery outermost, then tracing so the request log and metrics
// carry trace ids, then logging and metrics.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	httpMetrics := middleware.NewHTTPMetrics(cfg.Metrics)

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(httpMetrics.Middleware(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Get("/", cfg.Books.List)
			r.Route("/{bookID}", func(r chi.Router) {
				r.Get("/", cfg.Books.Get)
				r.Get("/summary", cfg.Books.Summary)
				r.Get("/reviews", cfg.Books.ListReviews)
				r.Post("/reviews", cfg.Reviews.Create)
			})
		})

		r.Route("/demo", func(r chi.Router) {
			r.Get("/error", cfg.Demo.Error)
			r.Get("/slow", cfg.Demo.Slow)
		})
	})

	return r
}
