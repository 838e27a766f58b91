package limiter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalingFunctions(t *testing.T) {
	assert.Equal(t, 2.0, Constant(2, 100))
	assert.Equal(t, 6.0, Linear(2, 3))
	assert.Equal(t, 9.0, Power(2, 3))
	assert.Equal(t, 8.0, Exponential(2, 3))
}

func TestParseScaling(t *testing.T) {
	for name, want := range map[string]float64{
		"":             6,
		"linear":       6,
		"Constant":     2,
		"power":        9,
		" exponential": 8,
	} {
		scale, err := ParseScaling(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, scale(2, 3), name)
	}

	_, err := ParseScaling("quadratic")
	assert.True(t, IsConfigurationError(err))
}

func TestRetryAfter(t *testing.T) {
	binding := Tier{Flow: 0.5, Burst: 9}

	// One denied unit call on a tier draining 0.5/s: 2s base, doubled.
	assert.Equal(t, 4.0, retryAfter(Linear, 2, 1, 1, binding))

	// The denied total is measured in multiples of the call's cost.
	assert.Equal(t, 3*2.0/0.5, retryAfter(Linear, 2, 3, 3, binding))
	assert.Equal(t, 3/0.5*Exponential(2, 2), retryAfter(Exponential, 2, 3, 6, binding))

	assert.Equal(t, 0.0, retryAfter(Linear, 2, 0, 5, binding))
}
