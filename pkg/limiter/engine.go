package limiter

import (
	"math"
	"time"
)

// admit is the admission step shared by the in-process store. It mirrors
// leaky_bucket.lua line for line; both must be kept in sync.
//
// now is the store's clock in seconds. The returned state is what must be
// persisted for the key, with the returned TTL.
func admit(prev bucketState, found bool, now, cost float64, limits LimitSet) (Reply, bucketState, time.Duration) {
	st := prev
	if !found {
		st = freshState(now, len(limits))
	}

	// A store clock that moved backwards must not refill anything.
	delta := math.Max(0, now-st.LastUpdate)

	decayed := make([]float64, len(limits))
	next := make([]float64, len(limits))
	minFree, binding, expiry := 0.0, 0, 0.0
	for i, t := range limits {
		decayed[i] = math.Max(0, st.Used[i]-delta*t.Flow)
		next[i] = decayed[i] + cost
		free := t.Burst - next[i]
		if i == 0 || free < minFree {
			minFree, binding = free, i
		}
		expiry = math.Max(expiry, math.Max(t.Burst, next[i])/t.Flow)
	}
	ttl := durationOf(math.Ceil(expiry))

	if minFree >= 0 {
		out := bucketState{LastUpdate: now, Used: next}
		return Reply{Allowed: true, Value: minFree, Tier: binding + 1}, out, ttl
	}
	out := bucketState{LastUpdate: now, Denied: st.Denied + cost, Used: decayed}
	return Reply{Allowed: false, Value: out.Denied, Tier: binding + 1}, out, ttl
}
