package limiter

import (
	"math"

	"github.com/vmihailenco/msgpack/v5"
)

// bucketState is the per-key record kept by a store. It is encoded as a
// three element msgpack array, which is also what the Lua script writes with
// cmsgpack, so records are readable from both sides.
type bucketState struct {
	_msgpack struct{} `msgpack:",as_array"`

	LastUpdate float64
	Denied     float64
	Used       []float64
}

func freshState(now float64, tiers int) bucketState {
	return bucketState{
		LastUpdate: now,
		Used:       make([]float64, tiers),
	}
}

func encodeState(st bucketState) ([]byte, error) {
	return msgpack.Marshal(&st)
}

// decodeState unpacks raw and reports whether it is a usable record for a
// set of tiers. Anything malformed or shaped for a different set is treated
// as absent.
func decodeState(raw []byte, tiers int) (bucketState, bool) {
	if len(raw) == 0 {
		return bucketState{}, false
	}
	var st bucketState
	if err := msgpack.Unmarshal(raw, &st); err != nil {
		return bucketState{}, false
	}
	if len(st.Used) != tiers || !finite(st.LastUpdate) || !finite(st.Denied) {
		return bucketState{}, false
	}
	for _, u := range st.Used {
		if !finite(u) || u < 0 {
			return bucketState{}, false
		}
	}
	return st, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
