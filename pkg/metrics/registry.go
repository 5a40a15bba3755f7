// Package metrics provides a process-wide, lazily-initialized registry of
// Prometheus instruments keyed by stable name. Repeated lookups of the same
// name return the same instrument, and recording on an instrument never
// panics: instrumentation failures must not affect business outcomes.
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry hands out named counters and histograms. Lookups are idempotent
// per name; the first call registers the instrument, later calls return it.
type Registry struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewRegistry creates a registry backed by the given registerer. Tests should
// pass prometheus.NewRegistry() to stay isolated from process-wide state.
func NewRegistry(registerer prometheus.Registerer) *Registry {
	return &Registry{
		registerer: registerer,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry backed by the default Prometheus
// registerer, so instruments show up on /metrics without extra wiring.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}

// Counter returns the counter registered under name, creating and registering
// it on first use. The label names are fixed at first lookup.
func (r *Registry) Counter(name, help string, labelNames ...string) Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if vec, ok := r.counters[name]; ok {
		return Counter{vec: vec}
	}

	vec := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: name, Help: help},
		labelNames,
	)
	if err := r.registerer.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				vec = existing
			}
		}
		// Any other registration failure leaves a working but unexported
		// instrument; recording on it is still safe.
	}
	r.counters[name] = vec
	return Counter{vec: vec}
}

// Histogram returns the histogram registered under name, creating and
// registering it on first use. A nil buckets slice uses prometheus.DefBuckets.
func (r *Registry) Histogram(name, help string, buckets []float64, labelNames ...string) Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()

	if vec, ok := r.histograms[name]; ok {
		return Histogram{vec: vec}
	}

	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	vec := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets},
		labelNames,
	)
	if err := r.registerer.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				vec = existing
			}
		}
	}
	r.histograms[name] = vec
	return Histogram{vec: vec}
}

// Counter is a named counter. The zero value is a no-op.
type Counter struct {
	vec *prometheus.CounterVec
}

// Add increments the counter by n for the given label values. Mismatched
// label values are dropped silently instead of panicking.
func (c Counter) Add(n float64, labelValues ...string) {
	if c.vec == nil {
		return
	}
	m, err := c.vec.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return
	}
	m.Add(n)
}

// Inc increments the counter by one for the given label values.
func (c Counter) Inc(labelValues ...string) {
	c.Add(1, labelValues...)
}

// Histogram is a named histogram. The zero value is a no-op.
type Histogram struct {
	vec *prometheus.HistogramVec
}

// Observe records a single observation for the given label values.
// Mismatched label values are dropped silently instead of panicking.
func (h Histogram) Observe(v float64, labelValues ...string) {
	if h.vec == nil {
		return
	}
	m, err := h.vec.GetMetricWithLabelValues(labelValues...)
	if err != nil {
		return
	}
	m.Observe(v)
}
