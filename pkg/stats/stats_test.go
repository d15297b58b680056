package stats

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaxDrawdownDepthAndDuration(t *testing.T) {
	equity := []float64{100, 110, 90, 95, 120}
	dd := MaxDrawdown(equity)
	require.InDelta(t, 18.18, dd.MaxDepthPct, 0.1)
	require.Equal(t, 1, dd.DurationBars)
}

func TestCAPMRequiresTenObservations(t *testing.T) {
	short := make([]float64, 5)
	attrib := CAPM(short, short)
	require.False(t, attrib.Defined)
}

func TestCAPMPerfectCorrelation(t *testing.T) {
	bench := []float64{0.01, -0.01, 0.02, -0.02, 0.01, 0.01, -0.01, 0.02, -0.02, 0.01, 0.015}
	strat := make([]float64, len(bench))
	for i, b := range bench {
		strat[i] = 2 * b
	}
	attrib := CAPM(strat, bench)
	require.True(t, attrib.Defined)
	require.InDelta(t, 2.0, attrib.Beta, 1e-9)
	require.InDelta(t, 1.0, attrib.RSquared, 1e-9)
}
