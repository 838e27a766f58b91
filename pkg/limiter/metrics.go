package limiter

// MetricsRecorder receives the limiter's counters and timings.
type MetricsRecorder interface {
	Add(name string, value float64, tags map[string]string)
	Observe(name string, value float64, tags map[string]string)
}

const (
	MetricCall    = "ratelimit.call"
	MetricLatency = "ratelimit.latency"
	MetricCost    = "ratelimit.cost"

	outcomeAllow = "allow"
	outcomeDeny  = "deny"
	outcomeError = "error"
)

// NoOpMetricsRecorder is a placeholder that does nothing.
// It ensures we never have to check 'if r.recorder != nil' in our hot path.
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) Add(name string, value float64, tags map[string]string)     {}
func (n *NoOpMetricsRecorder) Observe(name string, value float64, tags map[string]string) {}
