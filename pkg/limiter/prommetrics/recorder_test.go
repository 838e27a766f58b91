package prommetrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manenim/leaky-limiter/pkg/limiter"
)

func TestRecorder_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "test")

	r.Add(limiter.MetricCall, 1, map[string]string{"outcome": "allow"})
	r.Add(limiter.MetricCall, 1, map[string]string{"outcome": "allow"})
	r.Add(limiter.MetricCall, 1, map[string]string{"outcome": "deny"})

	vec := r.counters[limiter.MetricCall]
	require.NotNil(t, vec)
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues("allow")))
	assert.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("deny")))

	n, err := testutil.GatherAndCount(reg, "test_ratelimit_call_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecorder_Histograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "")

	r.Observe(limiter.MetricLatency, 0.002, map[string]string{"outcome": "allow"})
	r.Observe(limiter.MetricLatency, 0.004, map[string]string{"outcome": "allow"})

	assert.Equal(t, 1, testutil.CollectAndCount(r.histograms[limiter.MetricLatency], "ratelimit_latency_seconds"))
}

func TestRecorder_MissingTagsAreEmpty(t *testing.T) {
	r := New(prometheus.NewRegistry(), "")

	r.Add("ratelimit.cost", 3, map[string]string{"outcome": "allow"})
	r.Add("ratelimit.cost", 2, nil)

	vec := r.counters["ratelimit.cost"]
	assert.Equal(t, 3.0, testutil.ToFloat64(vec.WithLabelValues("allow")))
	assert.Equal(t, 2.0, testutil.ToFloat64(vec.WithLabelValues("")))
}

func TestRecorder_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := New(reg, "app")
	b := New(reg, "app")

	a.Add(limiter.MetricCall, 1, map[string]string{"outcome": "allow"})
	b.Add(limiter.MetricCall, 1, map[string]string{"outcome": "allow"})

	assert.Equal(t, 2.0, testutil.ToFloat64(a.counters[limiter.MetricCall].WithLabelValues("allow")))
}

func TestRecorder_WithLimiter(t *testing.T) {
	reg := prometheus.NewRegistry()
	l, err := limiter.New(limiter.NewMemoryStore(),
		limiter.WithRecorder(New(reg, "")),
		limiter.WithRate(limiter.Rate{Flow: 0.001, Burst: 1}),
	)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := l.Allow(context.Background(), "user_1")
		require.NoError(t, err)
	}

	n, err := testutil.GatherAndCount(reg, "ratelimit_call_total", "ratelimit_cost_total", "ratelimit_latency_seconds")
	require.NoError(t, err)
	// allow and deny series for each of the three metrics
	assert.Equal(t, 6, n)
}

func TestRecorder_PanicsOnConflictingRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_call_total",
		Help: "Registered elsewhere with other labels.",
	}, []string{"route"}))

	r := New(reg, "")
	assert.Panics(t, func() {
		r.Add(limiter.MetricCall, 1, map[string]string{"outcome": "allow"})
	})

	// The recorder stays usable for other metrics.
	assert.NotPanics(t, func() {
		r.Add(limiter.MetricCost, 1, map[string]string{"outcome": "allow"})
	})
}
