package limiter

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultTimeout = 5 * time.Second
	tracerName     = "github.com/manenim/leaky-limiter/pkg/limiter"
)

type config struct {
	buckets        []Bucket
	prefix         string
	timeout        time.Duration
	scale          ScalingFunc
	factor         float64
	recorder       MetricsRecorder
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
}

// Option configures a Limiter.
type Option func(*config)

// WithPrefix sets the string prepended to every key before it reaches the
// store (default "").
func WithPrefix(prefix string) Option {
	return func(c *config) {
		c.prefix = prefix
	}
}

// WithTimeout bounds each store round trip (default 5s). Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

func WithRecorder(r MetricsRecorder) Option {
	return func(c *config) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithBackoff sets how the wait of a denied call grows with repeated
// denials (default Linear with factor 2).
func WithBackoff(scale ScalingFunc, factor float64) Option {
	return func(c *config) {
		if scale != nil {
			c.scale = scale
		}
		c.factor = factor
	}
}

// WithCapacity adds one tier per capacity window.
func WithCapacity(caps ...Capacity) Option {
	return func(c *config) {
		for _, cp := range caps {
			c.buckets = append(c.buckets, cp)
		}
	}
}

// WithRate adds one tier per flow/burst pair.
func WithRate(rates ...Rate) Option {
	return func(c *config) {
		for _, r := range rates {
			c.buckets = append(c.buckets, r)
		}
	}
}

// WithBucket adds a tier described by any Bucket implementation.
func WithBucket(b Bucket) Option {
	return func(c *config) {
		if b != nil {
			c.buckets = append(c.buckets, b)
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracerProvider sets where spans for each check go. The global
// OpenTelemetry provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *config) {
		if tp != nil {
			c.tracerProvider = tp
		}
	}
}
