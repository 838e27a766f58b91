package limiter

import (
	"cmp"
	"math"
	"slices"
	"time"
)

type (
	// Bucket is anything that can describe a single leaky-bucket tier.
	Bucket interface {
		Tier() (Tier, error)
	}

	// Rate describes a bucket using raw flow (per second) and burst values.
	Rate struct {
		// Flow is the rate at which capacity becomes available, per second.
		// In a fully-stressed system calls are limited to exactly this rate.
		Flow float64

		// Burst is the capacity that can be used before limiting applies. It
		// must be at least the highest cost that will be checked.
		Burst float64
	}

	// Capacity describes a bucket using a minimum and maximum over a window.
	Capacity struct {
		// Window is the time window over which the limits are considered.
		Window time.Duration

		// Min is the capacity guaranteed over Window for a perfectly uniform
		// call pattern.
		Min float64

		// Max is the absolute capacity over Window. It must exceed Min by at
		// least the highest cost that will be checked.
		Max float64
	}
)

// Tier validates r and returns it as a Tier.
func (r Rate) Tier() (Tier, error) {
	return FromRate(r.Flow, r.Burst)
}

// Tier validates c and converts it to flow/burst form.
func (c Capacity) Tier() (Tier, error) {
	return FromCapacity(c.Window, c.Min, c.Max)
}

// FromRate builds a tier from a flow per second and a burst.
func FromRate(flow, burst float64) (Tier, error) {
	if !positive(flow) {
		return Tier{}, configError("flow", "must be a finite number > 0, got %v", flow)
	}
	if !positive(burst) {
		return Tier{}, configError("burst", "must be a finite number > 0, got %v", burst)
	}
	return Tier{Flow: flow, Burst: burst}, nil
}

// FromCapacity builds a tier that lets at least min and at most max units
// through over any window: flow = min/window, burst = max-min.
func FromCapacity(window time.Duration, min, max float64) (Tier, error) {
	if window <= 0 {
		return Tier{}, configError("window", "must be > 0, got %v", window)
	}
	if !positive(min) {
		return Tier{}, configError("min", "must be a finite number > 0, got %v", min)
	}
	if !(max > min) || math.IsInf(max, 0) {
		return Tier{}, configError("max", "must be greater than min (%v), got %v", min, max)
	}
	return Tier{Flow: min / window.Seconds(), Burst: max - min}, nil
}

// Normalize sorts tiers by (flow, burst) and drops every tier that is
// dominated by a slower one. A tier survives only when its burst is strictly
// smaller than the burst of the previous survivor.
func Normalize(tiers []Tier) (LimitSet, error) {
	if len(tiers) == 0 {
		return nil, configError("", "at least one rate or capacity limit is required")
	}

	sorted := slices.Clone(tiers)
	slices.SortStableFunc(sorted, func(a, b Tier) int {
		if c := cmp.Compare(a.Flow, b.Flow); c != 0 {
			return c
		}
		return cmp.Compare(a.Burst, b.Burst)
	})

	limits := LimitSet{sorted[0]}
	for _, t := range sorted[1:] {
		if t.Burst < limits[len(limits)-1].Burst {
			limits = append(limits, t)
		}
	}
	return limits, nil
}

// Args flattens the set into flow_1, burst_1, ..., flow_n, burst_n.
func (l LimitSet) Args() []float64 {
	args := make([]float64, 0, 2*len(l))
	for _, t := range l {
		args = append(args, t.Flow, t.Burst)
	}
	return args
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
