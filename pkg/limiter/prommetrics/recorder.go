// Package prommetrics exports limiter metrics to Prometheus.
package prommetrics

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements limiter.MetricsRecorder. Each metric name gets its own
// vector on first use; its label names are the tag keys seen on that first
// call, and later calls fill missing labels with "".
type Recorder struct {
	namespace  string
	registerer prometheus.Registerer

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

// New returns a Recorder registering its vectors with reg under namespace.
func New(reg prometheus.Registerer, namespace string) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Recorder{
		namespace:  namespace,
		registerer: reg,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

func (r *Recorder) Add(name string, value float64, tags map[string]string) {
	vec, values := r.counter(name, tags)
	vec.WithLabelValues(values...).Add(value)
}

func (r *Recorder) Observe(name string, value float64, tags map[string]string) {
	vec, values := r.histogram(name, tags)
	vec.WithLabelValues(values...).Observe(value)
}

func (r *Recorder) counter(name string, tags map[string]string) (*prometheus.CounterVec, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: r.namespace,
			Name:      metricName(name) + "_total",
			Help:      "Limiter counter " + name + ".",
		}, r.labelNames(name, tags))
		vec = register(r.registerer, vec)
		r.counters[name] = vec
	}
	return vec, r.labelValues(name, tags)
}

func (r *Recorder) histogram(name string, tags map[string]string) (*prometheus.HistogramVec, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	vec, ok := r.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: r.namespace,
			Name:      metricName(name) + "_seconds",
			Help:      "Limiter timing " + name + ".",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, r.labelNames(name, tags))
		vec = register(r.registerer, vec)
		r.histograms[name] = vec
	}
	return vec, r.labelValues(name, tags)
}

func (r *Recorder) labelNames(name string, tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	sort.Strings(names)
	r.labels[name] = names
	return names
}

func (r *Recorder) labelValues(name string, tags map[string]string) []string {
	names := r.labels[name]
	values := make([]string, len(names))
	for i, k := range names {
		values[i] = tags[k]
	}
	return values
}

// register returns the already registered collector when an identical one
// exists, so two Recorders on one registry share their vectors. Any other
// registration error panics, as with prometheus.MustRegister.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(T); ok {
			return existing
		}
	}
	panic(err)
}

// metricName maps "ratelimit.latency" to "ratelimit_latency".
func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(name)
}
