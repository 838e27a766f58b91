package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Limiter admits or rejects calls per key under one or more leaky-bucket
// tiers. It holds no bucket state itself; all of it lives in the Store, so
// any number of Limiters in any number of processes can share one budget.
type Limiter struct {
	store    Store
	limits   LimitSet
	prefix   string
	timeout  time.Duration
	scale    ScalingFunc
	factor   float64
	recorder MetricsRecorder
	logger   *slog.Logger
	tracer   trace.Tracer
}

var _ RateLimiter = (*Limiter)(nil)

// New validates and normalizes the configured tiers once and returns a
// Limiter that runs every check against store. It fails with a
// *ConfigurationError when no tier is configured or any tier is invalid.
func New(store Store, opts ...Option) (*Limiter, error) {
	cfg := config{
		timeout:  defaultTimeout,
		scale:    Linear,
		factor:   DefaultBackoffFactor,
		recorder: &NoOpMetricsRecorder{},
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if store == nil {
		return nil, configError("store", "is required")
	}

	tiers := make([]Tier, 0, len(cfg.buckets))
	for _, b := range cfg.buckets {
		t, err := b.Tier()
		if err != nil {
			return nil, err
		}
		tiers = append(tiers, t)
	}
	limits, err := Normalize(tiers)
	if err != nil {
		return nil, err
	}

	tp := cfg.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Limiter{
		store:    store,
		limits:   limits,
		prefix:   cfg.prefix,
		timeout:  cfg.timeout,
		scale:    cfg.scale,
		factor:   cfg.factor,
		recorder: cfg.recorder,
		logger:   cfg.logger,
		tracer:   tp.Tracer(tracerName),
	}, nil
}

// Limits returns a copy of the normalized tiers in evaluation order.
func (l *Limiter) Limits() LimitSet {
	out := make(LimitSet, len(l.limits))
	copy(out, l.limits)
	return out
}

// Allow checks a call of cost 1.
func (l *Limiter) Allow(ctx context.Context, key string) (Decision, error) {
	return l.AllowN(ctx, key, 1)
}

// AllowN checks whether a call of the given cost may proceed for key. Store
// errors are returned unchanged and no decision is made for them; the
// caller chooses whether to fail open or closed.
func (l *Limiter) AllowN(ctx context.Context, key string, cost float64) (Decision, error) {
	if cost < 0 || !finite(cost) {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidCost, cost)
	}

	ctx, span := l.tracer.Start(ctx, "limiter.Allow", trace.WithAttributes(
		attribute.String("limiter.key", key),
		attribute.Float64("limiter.cost", cost),
	))
	defer span.End()

	start := time.Now()
	reply, err := l.admit(ctx, key, cost)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		l.record(outcomeError, cost, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.WarnContext(ctx, "admission check failed", "key", key, "cost", cost, "error", err)
		return Decision{}, err
	}

	dec, err := l.translate(reply, cost)
	if err != nil {
		l.record(outcomeError, cost, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Decision{}, err
	}

	span.SetAttributes(
		attribute.Bool("limiter.allowed", dec.Allow),
		attribute.Int("limiter.tier", reply.Tier),
	)
	if dec.Allow {
		l.record(outcomeAllow, cost, elapsed)
	} else {
		l.record(outcomeDeny, cost, elapsed)
		l.logger.DebugContext(ctx, "call denied",
			"key", key,
			"cost", cost,
			"denied", reply.Value,
			"retry_after", dec.RetryAfter,
		)
	}
	return dec, nil
}

// Reset forgets all recorded usage for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	return l.store.Reset(ctx, l.prefix+key)
}

func (l *Limiter) admit(ctx context.Context, key string, cost float64) (Reply, error) {
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()
	return l.store.Admit(ctx, l.prefix+key, cost, l.limits)
}

func (l *Limiter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, l.timeout)
}

// translate turns the store's raw reply into a Decision. A denied call's
// wait is the time the binding tier needs to drain this call's cost, scaled
// by the backoff function over the denied total in multiples of cost.
func (l *Limiter) translate(reply Reply, cost float64) (Decision, error) {
	if reply.Tier < 1 || reply.Tier > len(l.limits) {
		return Decision{}, fmt.Errorf("%w: tier %d of %d", ErrInvalidReply, reply.Tier, len(l.limits))
	}
	binding := l.limits[reply.Tier-1]

	if reply.Allowed {
		return Decision{Allow: true, Free: reply.Value, Limit: binding}, nil
	}

	wait := retryAfter(l.scale, l.factor, cost, reply.Value, binding)
	return Decision{
		Allow:      false,
		RetryAfter: durationOf(wait),
		Limit:      binding,
	}, nil
}

func (l *Limiter) record(outcome string, cost, elapsed float64) {
	tags := map[string]string{"outcome": outcome}
	l.recorder.Add(MetricCall, 1, tags)
	l.recorder.Add(MetricCost, cost, tags)
	l.recorder.Observe(MetricLatency, elapsed, tags)
}

func durationOf(seconds float64) time.Duration {
	if math.IsNaN(seconds) || seconds <= 0 {
		return 0
	}
	if seconds >= math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(seconds * float64(time.Second))
}
