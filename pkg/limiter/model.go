package limiter

import (
	"context"
	"time"
)

// Tier is one leaky bucket: Flow units drain per second and at most Burst
// units may be outstanding before calls are rejected.
type Tier struct {
	Flow  float64
	Burst float64
}

// LimitSet is a normalized, non-empty list of tiers ordered from the slowest
// flow to the fastest. Bursts strictly decrease along the list.
type LimitSet []Tier

type Decision struct {
	Allow      bool
	Free       float64
	RetryAfter time.Duration
	Limit      Tier
}

// Reply is the raw outcome of one atomic admission step. Value holds the free
// capacity when Allowed and the accumulated denied cost otherwise. Tier is the
// 1-based position of the binding tier in the LimitSet.
type Reply struct {
	Allowed bool
	Value   float64
	Tier    int
}

// Store runs the admission step for a key atomically. Implementations must
// make the read, decay, decide and write sequence indivisible per key.
type Store interface {
	Admit(ctx context.Context, key string, cost float64, limits LimitSet) (Reply, error)
	Reset(ctx context.Context, key string) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
	AllowN(ctx context.Context, key string, cost float64) (Decision, error)
}
