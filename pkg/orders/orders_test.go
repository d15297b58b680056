package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Scenario (i): gap-down stop. Enter long 10 shares at 100, 5% stop (=95).
// Next bar opens at 90 (below stop) -> fill at the open, not the stop.
func TestGapDownStopFillsAtOpen(t *testing.T) {
	stop := d("95")
	open, high, low := d("90"), d("92"), d("89")

	fill, reason, ok := CheckStopTakeProfit(Long, open, high, low, stop, decimal.Zero, true, false)
	require.True(t, ok)
	require.Equal(t, ExitStopLoss, reason)
	require.True(t, fill.Equal(d("90")))

	pnl := PnL(Long, d("100"), fill, d("10"))
	require.True(t, pnl.Equal(d("-100")), "expected -100, got %s", pnl)
}

// Scenario (ii): buy-limit at 98, expiry 2 bars, three consecutive bars
// with low=99 never trigger; order must be gone after the second bar.
func TestLimitExpiresWithoutTrigger(t *testing.T) {
	p := &PendingLimitOrder{
		Signal:        Signal{LimitPrice: d("98")},
		BarsRemaining: 2,
		Direction:     Buy,
	}

	for i := 0; i < 3; i++ {
		_, filled := TryFillLimit(p, d("99"), d("101"))
		require.False(t, filled)
		if DecrementOrExpire(p) {
			require.Equal(t, 1, i, "should expire exactly after the second evaluated bar (expiry 2)")
			return
		}
	}
	t.Fatal("expected order to expire within 3 bars")
}

// Scenario (iii): trailing ratchet. entry=100, trailing=5%. Highs: 100,
// 110, 108, 115, 112 -> stop progression 95, 104.5, 104.5, 109.25, 109.25.
func TestTrailingStopRatchetsNeverLowers(t *testing.T) {
	pct := d("0.05")
	stop := InitialTrailingStop(d("100"), pct, Long)
	require.True(t, stop.Equal(d("95")))

	highs := []string{"100", "110", "108", "115", "112"}
	want := []string{"95", "104.5", "104.5", "109.25", "109.25"}

	for i, h := range highs {
		stop = RatchetTrailingStop(stop, d(h), d(h), pct, Long)
		require.True(t, stop.Equal(d(want[i])), "bar %d: got %s want %s", i, stop, want[i])
	}
}

func TestShortMarkToMarketFormula(t *testing.T) {
	// entry 100, current 90, 10 shares short -> (2*100-90)*10 = 1100
	mtm := MarkToMarket(Short, d("100"), d("90"), d("10"))
	require.True(t, mtm.Equal(d("1100")))
}
