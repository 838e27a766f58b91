package limiter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
)

// KeyFunc extracts the rate limit key from an HTTP request. An empty key
// lets the request through unchecked.
type KeyFunc func(r *http.Request) string

// RemoteIPKey keys requests by client IP, without the port.
func RemoteIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MiddlewareConfig configures the HTTP middleware.
type MiddlewareConfig struct {
	// Limiter is the rate limiter to use.
	Limiter RateLimiter

	// KeyFunc extracts the key from requests. RemoteIPKey when nil.
	KeyFunc KeyFunc

	// CostFunc prices a request. Every request costs 1 when nil.
	CostFunc func(r *http.Request) float64

	// FailOpen lets requests through when the store cannot be reached.
	// Otherwise they are answered with 503.
	FailOpen bool

	// Logger receives store failures. slog.Default when nil.
	Logger *slog.Logger
}

type decisionKey struct{}

// DecisionFromContext returns the decision made for the current request.
func DecisionFromContext(ctx context.Context) (Decision, bool) {
	dec, ok := ctx.Value(decisionKey{}).(Decision)
	return dec, ok
}

// Middleware enforces the limiter on every request. Denied requests get 429
// with a Retry-After header in whole seconds. It panics when cfg.Limiter is
// nil.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Limiter == nil {
		panic("limiter: Middleware requires a Limiter")
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = RemoteIPKey
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.KeyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			cost := 1.0
			if cfg.CostFunc != nil {
				cost = cfg.CostFunc(r)
			}

			dec, err := cfg.Limiter.AllowN(r.Context(), key, cost)
			if errors.Is(err, ErrInvalidCost) {
				// A broken CostFunc is not a store outage; never fail open on it.
				cfg.Logger.ErrorContext(r.Context(), "invalid request cost", "key", key, "cost", cost)
				writeError(w, http.StatusInternalServerError, "invalid_request_cost", 0)
				return
			}
			if err != nil {
				cfg.Logger.ErrorContext(r.Context(), "rate limit check failed", "key", key, "error", err)
				if cfg.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				writeError(w, http.StatusServiceUnavailable, "rate_limiter_unavailable", 0)
				return
			}

			if !dec.Allow {
				seconds := int64(math.Ceil(dec.RetryAfter.Seconds()))
				w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
				writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", seconds)
				return
			}

			w.Header().Set("X-RateLimit-Free", strconv.FormatFloat(dec.Free, 'f', -1, 64))
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), decisionKey{}, dec)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, code string, retryAfter int64) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]interface{}{"error": code}
	if retryAfter > 0 {
		body["retry_after_seconds"] = retryAfter
	}
	_ = json.NewEncoder(w).Encode(body)
}
