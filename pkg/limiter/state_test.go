package limiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestStateCodec(t *testing.T) {
	st := bucketState{LastUpdate: 1700000000.25, Denied: 3, Used: []float64{1.5, 0}}
	raw, err := encodeState(st)
	require.NoError(t, err)

	// Encoded as a plain three element array.
	var generic []interface{}
	require.NoError(t, msgpack.Unmarshal(raw, &generic))
	assert.Len(t, generic, 3)

	got, ok := decodeState(raw, 2)
	require.True(t, ok)
	assert.Equal(t, st.LastUpdate, got.LastUpdate)
	assert.Equal(t, st.Denied, got.Denied)
	assert.Equal(t, st.Used, got.Used)
}

func TestDecodeState_AcceptsIntegerEncodedNumbers(t *testing.T) {
	// cmsgpack packs integral Lua numbers as msgpack integers.
	raw, err := msgpack.Marshal([]interface{}{int64(1700000000), int8(0), []interface{}{int8(4), 2.5}})
	require.NoError(t, err)

	got, ok := decodeState(raw, 2)
	require.True(t, ok)
	assert.Equal(t, 1700000000.0, got.LastUpdate)
	assert.Equal(t, []float64{4, 2.5}, got.Used)
}

func TestDecodeState_RejectsUnusableRecords(t *testing.T) {
	mismatched, err := encodeState(bucketState{LastUpdate: 1, Used: []float64{1}})
	require.NoError(t, err)
	negative, err := encodeState(bucketState{LastUpdate: 1, Used: []float64{-1, 0}})
	require.NoError(t, err)
	wrongType, err := msgpack.Marshal(map[string]string{"tokens": "3"})
	require.NoError(t, err)

	for name, raw := range map[string][]byte{
		"empty":      nil,
		"garbage":    []byte("not msgpack"),
		"mismatched": mismatched,
		"negative":   negative,
		"wrong type": wrongType,
	} {
		_, ok := decodeState(raw, 2)
		assert.False(t, ok, name)
	}
}
