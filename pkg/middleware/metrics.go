package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bookshelf-labs/bookshelf/pkg/metrics"
)

// HTTPMetrics holds the HTTP-level instruments shared by all routes.
type HTTPMetrics struct {
	requests metrics.Counter
	duration metrics.Histogram
}

// NewHTTPMetrics creates the HTTP instruments in the given registry.
func NewHTTPMetrics(reg *metrics.Registry) *HTTPMetrics {
	return &HTTPMetrics{
		requests: reg.Counter(
			"http_requests_total",
			"Total number of HTTP requests",
			"service", "method", "path", "status",
		),
		duration: reg.Histogram(
			"http_request_duration_seconds",
			"HTTP request duration in seconds",
			nil,
			"service", "method", "path", "status",
		),
	}
}

type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware returns middleware that records request counts and durations,
// labeled by the chi route pattern so cardinality stays bounded.
func (m *HTTPMetrics) Middleware(serviceName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			status := strconv.Itoa(rw.statusCode)

			routePattern := chi.RouteContext(r.Context()).RoutePattern()
			if routePattern == "" {
				routePattern = "unknown"
			}

			m.requests.Inc(serviceName, r.Method, routePattern, status)
			m.duration.Observe(time.Since(start).Seconds(), serviceName, r.Method, routePattern, status)
		})
	}
}
