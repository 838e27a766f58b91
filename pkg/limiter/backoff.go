package limiter

import (
	"math"
	"strings"
)

// ScalingFunc turns the accumulated denied cost, expressed as a multiple x of
// the current call's cost, into a multiplier for the base wait.
type ScalingFunc func(factor, x float64) float64

const DefaultBackoffFactor = 2.0

// Constant always waits factor times the base wait.
func Constant(factor, _ float64) float64 { return factor }

// Linear grows the wait proportionally with repeated denials.
func Linear(factor, x float64) float64 { return factor * x }

// Power raises the denial multiple to factor.
func Power(factor, x float64) float64 { return math.Pow(x, factor) }

// Exponential raises factor to the denial multiple.
func Exponential(factor, x float64) float64 { return math.Pow(factor, x) }

// ParseScaling maps a configuration name to one of the predefined scaling
// functions. An empty name selects Linear.
func ParseScaling(name string) (ScalingFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return Linear, nil
	case "constant":
		return Constant, nil
	case "power":
		return Power, nil
	case "exponential":
		return Exponential, nil
	default:
		return nil, configError("backoff", "unknown scaling %q", name)
	}
}

// retryAfter is the translator's wait in seconds for a denied call: the time
// the binding tier needs to drain one call's cost, scaled by how much has
// been denied since the last allowed call.
func retryAfter(scale ScalingFunc, factor, cost, denied float64, binding Tier) float64 {
	if cost <= 0 {
		return 0
	}
	return (cost / binding.Flow) * scale(factor, denied/cost)
}
