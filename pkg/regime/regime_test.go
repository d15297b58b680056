package regime

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario (vi): annualized vol 0.35 with thresholds low=0.15/high=0.25 and
// multipliers low=1.2/normal=1.0/high=0.6 classifies HighVol, multiplier 0.6.
func TestRegimeSizingScenario(t *testing.T) {
	th := Thresholds{
		LowVolThreshold:   0.15,
		HighVolThreshold:  0.25,
		LowVolMultiplier:  1.2,
		NormalMultiplier:  1.0,
		HighVolMultiplier: 0.6,
	}

	// Construct returns whose sample stddev annualizes to ~0.35.
	dailyStd := 0.35 / math.Sqrt(252)
	returns := make([]float64, 30)
	for i := range returns {
		if i%2 == 0 {
			returns[i] = dailyStd
		} else {
			returns[i] = -dailyStd
		}
	}

	r, _ := Classify(returns, th)
	require.Equal(t, HighVol, r)
	require.Equal(t, 0.6, th.Multiplier(r))
}

func TestFewerThanFiveReturnsAlwaysNormal(t *testing.T) {
	r, _ := Classify([]float64{0.5, 0.5, 0.5}, DefaultThresholds())
	require.Equal(t, Normal, r)
}
