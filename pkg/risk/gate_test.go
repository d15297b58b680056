package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/regime"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func defaultParams() Parameters {
	return Parameters{
		MaxRiskPerTradePct:   d("1"),
		MaxPortfolioRiskPct:  d("6"),
		MaxPositionSizePct:   d("20"),
		DefaultStopLossPct:   d("5"),
		DefaultTakeProfitPct: d("10"),
		TrailingStopEnabled:  true,
		TrailingStopPct:      d("5"),
		MinConfidence:        0.5,
		DailyLossLimitPct:    d("5"),
		MaxConsecutiveLosses: 3,
		DrawdownLimitPct:     d("15"),
	}
}

// Scenario (v): portfolio=100000, daily_limit=5%, daily_pnl=-6000 ->
// can_trade=false, daily_loss present in triggers.
func TestCircuitBreakerDailyLossScenario(t *testing.T) {
	g := NewGate(defaultParams())
	result := g.CheckCircuitBreakers(d("100000"), d("-6000"))
	require.False(t, result.CanTrade)
	require.Contains(t, result.Reasons, "daily_loss")
}

func TestCircuitBreakerAdmitsNoneWhileHalted(t *testing.T) {
	g := NewGate(defaultParams())
	g.SetHalted(true, "manual")
	result := g.CheckCircuitBreakers(d("100000"), d("0"))
	require.False(t, result.CanTrade)
	require.Contains(t, result.Reasons, "manual_halt")

	g.SetHalted(false, "")
	result = g.CheckCircuitBreakers(d("100000"), d("0"))
	require.True(t, result.CanTrade)
}

func TestConsecutiveLossesTrip(t *testing.T) {
	g := NewGate(defaultParams())
	for i := 0; i < 3; i++ {
		g.RecordTrade(TradeOutcome{Symbol: "AAPL", PnL: d("-10")})
	}
	result := g.CheckCircuitBreakers(d("100000"), d("0"))
	require.False(t, result.CanTrade)
	require.Contains(t, result.Reasons, "consecutive_losses")
}

func TestTrailingStopNeverLowersWhileOpen(t *testing.T) {
	g := NewGate(defaultParams())
	g.OpenPosition("AAPL", true, d("100"), d("95"), d("110"))

	g.UpdateTrailingStop("AAPL", d("110"))
	stop1, _ := g.StopLossFor("AAPL")

	g.UpdateTrailingStop("AAPL", d("105")) // pullback must not loosen stop
	stop2, _ := g.StopLossFor("AAPL")

	require.True(t, stop2.GreaterThanOrEqual(stop1), "stop must never decrease: %s -> %s", stop1, stop2)
}

// Scenario (vi) as consumed by the gate's sizing formula.
func TestSizePositionAppliesRegimeMultiplier(t *testing.T) {
	g := NewGate(defaultParams())
	g.SetRegimeThresholds(regime.Thresholds{
		LowVolThreshold: 0.15, HighVolThreshold: 0.25,
		LowVolMultiplier: 1.2, NormalMultiplier: 1.0, HighVolMultiplier: 0.6,
	})
	shares := g.SizePosition(0.8, d("50"), d("100000"), regime.HighVol)
	// risk = 1000, stop_distance = 2.5, base = 400, *0.6 = 240
	require.True(t, shares.Equal(d("240")), "got %s", shares)
}
