package workflow

import (
	"time"

	"github.com/bookshelf-labs/bookshelf/pkg/metrics"
)

// Instrument names for the review workflow. Dashboards and alert rules key on
// these exact strings; do not rename without updating deploy/.
const (
	requestsMetricName = "multi_step_review_book_update_requests_total"
	errorsMetricName   = "multi_step_review_book_update_errors_total"
	durationMetricName = "multi_step_review_book_update_duration_seconds"
)

// durationBuckets cover the expected latency range of the two-write workflow,
// from sub-millisecond in-memory runs to multi-second degraded databases.
var durationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics bundles the workflow's three instruments. Every Execute call
// increments requests and observes duration exactly once; errors is
// incremented exactly once per failed call, labeled with the failed stage.
type Metrics struct {
	requests metrics.Counter
	errors   metrics.Counter
	duration metrics.Histogram
}

// NewMetrics registers (or re-fetches) the workflow instruments on reg.
func NewMetrics(reg *metrics.Registry) Metrics {
	return Metrics{
		requests: reg.Counter(
			requestsMetricName,
			"Total invocations of the multi-step review/book-update workflow.",
		),
		errors: reg.Counter(
			errorsMetricName,
			"Failed invocations of the multi-step review/book-update workflow, by failed stage.",
			"stage",
		),
		duration: reg.Histogram(
			durationMetricName,
			"End-to-end duration of the multi-step review/book-update workflow in seconds.",
			durationBuckets,
		),
	}
}

// observe records the per-invocation instruments. Called exactly once per
// Execute, on every exit path.
func (m Metrics) observe(elapsed time.Duration, err error) {
	m.requests.Inc()
	m.duration.Observe(elapsed.Seconds())
	if err != nil {
		stage := StageOf(err)
		if stage == "" {
			stage = StageCreateReview
		}
		m.errors.Inc(stage)
	}
}
