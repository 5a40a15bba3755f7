package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookshelf-labs/bookshelf/pkg/metrics"
)

func TestHTTPMetricsLabelsByRoutePattern(t *testing.T) {
	promReg := prometheus.NewRegistry()
	m := NewHTTPMetrics(metrics.NewRegistry(promReg))

	r := chi.NewRouter()
	r.Use(m.Middleware("test-svc"))
	r.Get("/books/{bookID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/fail", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	for _, path := range []string{"/books/1", "/books/2", "/fail"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	families, err := promReg.Gather()
	require.NoError(t, err)

	byLabels := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			var path, status string
			for _, lp := range metric.GetLabel() {
				switch lp.GetName() {
				case "path":
					path = lp.GetValue()
				case "status":
					status = lp.GetValue()
				}
			}
			byLabels[path+" "+status] = metric.GetCounter().GetValue()
		}
	}

	// Distinct book ids collapse into one route-pattern series.
	assert.Equal(t, 2.0, byLabels["/books/{bookID} 200"])
	assert.Equal(t, 1.0, byLabels["/fail 500"])
}
