package metrics

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func TestCounterLookupIsIdempotent(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg := NewRegistry(promReg)

	a := reg.Counter("widget_total", "widgets")
	b := reg.Counter("widget_total", "widgets")

	a.Inc()
	b.Inc()

	assert.Equal(t, 2.0, gatherValue(t, promReg, "widget_total"))
}

func TestCounterWithLabels(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg := NewRegistry(promReg)

	c := reg.Counter("op_total", "ops", "stage")
	c.Inc("a")
	c.Inc("a")
	c.Add(3, "b")

	assert.Equal(t, 5.0, gatherValue(t, promReg, "op_total"))
}

func TestCounterMismatchedLabelsDoesNotPanic(t *testing.T) {
	reg := NewRegistry(prometheus.NewRegistry())
	c := reg.Counter("op_total", "ops", "stage")

	assert.NotPanics(t, func() {
		c.Inc()
		c.Inc("a", "extra")
	})
}

func TestZeroValueInstrumentsAreNoOps(t *testing.T) {
	assert.NotPanics(t, func() {
		var c Counter
		c.Inc()
		var h Histogram
		h.Observe(1)
	})
}

func TestHistogramDefaultBuckets(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg := NewRegistry(promReg)

	h := reg.Histogram("latency_seconds", "latency", nil)
	h.Observe(0.5)

	families, err := promReg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, uint64(1), families[0].GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestRegistryAdoptsExistingCollector(t *testing.T) {
	promReg := prometheus.NewRegistry()

	// Two Registry values over the same registerer must converge on one
	// underlying instrument instead of erroring.
	r1 := NewRegistry(promReg)
	r2 := NewRegistry(promReg)

	r1.Counter("shared_total", "shared").Inc()
	r2.Counter("shared_total", "shared").Inc()

	assert.Equal(t, 2.0, gatherValue(t, promReg, "shared_total"))
}

func TestConcurrentLookups(t *testing.T) {
	promReg := prometheus.NewRegistry()
	reg := NewRegistry(promReg)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.Counter("racy_total", "racy").Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, 32.0, gatherValue(t, promReg, "racy_total"))
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}
