package limiter

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromCapacity(t *testing.T) {
	tier, err := FromCapacity(time.Minute, 10, 20)
	require.NoError(t, err)
	assert.InDelta(t, 10.0/60.0, tier.Flow, 1e-12)
	assert.Equal(t, 10.0, tier.Burst)

	cases := []struct {
		name          string
		window        time.Duration
		min, max      float64
		expectedField string
	}{
		{"zero window", 0, 10, 20, "window"},
		{"negative window", -time.Second, 10, 20, "window"},
		{"zero min", time.Minute, 0, 20, "min"},
		{"negative min", time.Minute, -1, 20, "min"},
		{"max equals min", time.Minute, 10, 10, "max"},
		{"max below min", time.Minute, 10, 5, "max"},
		{"nan max", time.Minute, 10, math.NaN(), "max"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromCapacity(tc.window, tc.min, tc.max)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)

			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tc.expectedField, ce.Field)
		})
	}
}

func TestFromRate(t *testing.T) {
	tier, err := FromRate(0.5, 9)
	require.NoError(t, err)
	assert.Equal(t, Tier{Flow: 0.5, Burst: 9}, tier)

	for _, bad := range [][2]float64{{0, 1}, {-1, 1}, {1, 0}, {1, -2}, {math.NaN(), 1}, {1, math.Inf(1)}} {
		_, err := FromRate(bad[0], bad[1])
		assert.True(t, IsConfigurationError(err), "flow=%v burst=%v", bad[0], bad[1])
	}
}

func TestBucketImplementations(t *testing.T) {
	var b Bucket = Capacity{Window: 2 * time.Second, Min: 1, Max: 5}
	tier, err := b.Tier()
	require.NoError(t, err)
	assert.Equal(t, Tier{Flow: 0.5, Burst: 4}, tier)

	b = Rate{Flow: 3, Burst: 6}
	tier, err = b.Tier()
	require.NoError(t, err)
	assert.Equal(t, Tier{Flow: 3, Burst: 6}, tier)
}

func TestNormalize_PrunesDominatedTiers(t *testing.T) {
	in := []Tier{
		{Flow: 0.3, Burst: 2},
		{Flow: 0.1, Burst: 4},
		{Flow: 0.4, Burst: 1},
		{Flow: 0.2, Burst: 3},
		{Flow: 0.2, Burst: 2},
	}
	out, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, LimitSet{
		{Flow: 0.1, Burst: 4},
		{Flow: 0.2, Burst: 2},
		{Flow: 0.4, Burst: 1},
	}, out)

	// The input is left untouched.
	assert.Equal(t, Tier{Flow: 0.3, Burst: 2}, in[0])
}

func TestNormalize_KeepsFirstOfDuplicates(t *testing.T) {
	out, err := Normalize([]Tier{{Flow: 1, Burst: 5}, {Flow: 1, Burst: 5}})
	require.NoError(t, err)
	assert.Equal(t, LimitSet{{Flow: 1, Burst: 5}}, out)
}

func TestNormalize_FasterTierWithLargerBurstIsDropped(t *testing.T) {
	out, err := Normalize([]Tier{{Flow: 2, Burst: 10}, {Flow: 1, Burst: 5}})
	require.NoError(t, err)
	assert.Equal(t, LimitSet{{Flow: 1, Burst: 5}}, out)
}

func TestNormalize_Empty(t *testing.T) {
	_, err := Normalize(nil)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestLimitSetArgs(t *testing.T) {
	l := LimitSet{{Flow: 0.25, Burst: 18}, {Flow: 0.5, Burst: 9}}
	assert.Equal(t, []float64{0.25, 18, 0.5, 9}, l.Args())
}
