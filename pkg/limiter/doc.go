// Package limiter provides distributed admission control based on one or
// more leaky buckets evaluated together.
//
// The primary entry point is the Limiter type:
//
//	l, err := limiter.New(store, limiter.WithRate(limiter.Rate{Flow: 5, Burst: 10}))
//	dec, err := l.AllowN(ctx, "user_123", 1)
//
// The returned Decision reports whether the call may proceed and, when it
// may not, how long the caller should wait before retrying.
//
// # Overview
//
// Each key owns one bucket per configured tier:
//
//   - Every call adds its cost to each bucket.
//   - Every bucket drains continuously at its Flow, in units per second.
//   - A call is admitted only when no bucket would exceed its Burst.
//
// A denied call does not add its cost. Instead the denied cost is
// accumulated until the next admitted call, and the suggested wait grows with
// that total, so clients that keep retrying back off further.
//
// # Tiers
//
// Tiers are described either as a raw flow/burst pair (Rate) or as a
// guaranteed minimum and absolute maximum over a time window (Capacity). A
// Capacity{Window, Min, Max} becomes Flow = Min/Window and Burst = Max-Min.
//
// At construction the tiers are sorted by flow (then burst) and every tier
// whose burst is not strictly smaller than the burst of a slower tier is
// dropped, since the slower tier already restricts at least as much. The
// surviving LimitSet is fixed for the lifetime of the Limiter.
//
// # Stores
//
// The decay-decide-commit step runs inside a Store, atomically per key:
//
//   - RedisStore runs leaky_bucket.lua. Redis executes scripts atomically,
//     and the script reads the clock with TIME so that hosts with skewed
//     clocks still agree. The script is sent by SHA1 first and only sent in
//     full when Redis answers NOSCRIPT.
//
//   - MemoryStore runs the same step in-process under a per-key lock. It is
//     useful for tests and single-instance deployments, and its clock can be
//     replaced with WithClock.
//
// Recommendation: use RedisStore in production when you need a global limit,
// and MemoryStore in tests.
//
// # Storage Details
//
// The record for a key is stored under prefix+key as a msgpack array:
//
//	[last_update_seconds, denied_accumulator, [used_1, ..., used_n]]
//
// A record whose used list does not match the configured number of tiers,
// or that fails to decode, is treated as absent. Every write sets a TTL of
// the time the slowest bucket needs to drain completely, so abandoned keys
// expire on their own.
//
// # Backoff
//
// The wait of a denied call is
//
//	cost / flow * scaling(factor, denied / cost)
//
// where flow belongs to the binding tier (the one with the least free
// capacity, slowest first on ties) and denied is the accumulated denied cost
// including this call. Constant, Linear (default, factor 2), Power and
// Exponential are provided; any ScalingFunc may be used.
//
// # Context and Error Policy
//
// AllowN passes its context to the store and bounds each round trip with the
// WithTimeout duration (default 5s). Store errors are returned unchanged: the
// package never turns a failure into an allow or a deny, and the caller
// decides whether to fail open or closed. A script that Redis has started
// always runs to completion, even if the caller gave up waiting.
//
// # Configuration
//
// Limiter is configured using the Functional Options pattern:
//
//	l, err := limiter.New(limiter.NewRedisStore(client),
//		limiter.WithPrefix("myapp:rate:"),
//		limiter.WithCapacity(limiter.Capacity{Window: time.Minute, Min: 10, Max: 20}),
//		limiter.WithRate(limiter.Rate{Flow: 0.5, Burst: 9}),
//		limiter.WithBackoff(limiter.Exponential, 2),
//		limiter.WithRecorder(myMetrics),
//	)
//
// New returns a *ConfigurationError when no tier is given, when a window,
// minimum, flow or burst is not positive, or when a maximum does not exceed
// its minimum.
package limiter
