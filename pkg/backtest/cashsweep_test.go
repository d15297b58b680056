package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
)

// TestCashSweepAccruesContinuouslyOnIdleCash verifies Config.CashSweepRateAnnual
// is applied in markToMarket as continuous compounding over the calendar
// days elapsed between bars, with no trades to otherwise move cash.
func TestCashSweepAccruesContinuouslyOnIdleCash(t *testing.T) {
	bars := marketdata.Series{
		bar("2024-01-02", "100", "101", "99", "100", 1_000_000),
		bar("2024-01-12", "100", "101", "99", "100", 1_000_000), // 10 calendar days later
	}
	source := &buyOnceSource{symbol: "AAPL", date: time.Time{}} // never matches; no trades

	cfg := defaultTestConfig()
	cfg.CashSweepRateAnnual = d("0.05")
	eng := NewEngine(cfg, defaultTestGate(), source)
	result := eng.Run(map[string]marketdata.Series{"AAPL": bars})

	const days = 10.0
	expected := cfg.InitialCapital.Mul(decimal.NewFromFloat(math.Exp(0.05 * days / 365.0)))
	diff := result.State.Cash.Sub(expected).Abs()
	require.True(t, diff.LessThan(d("0.01")), "expected cash near %s, got %s", expected, result.State.Cash)
}

func TestCashSweepDisabledByDefault(t *testing.T) {
	bars := marketdata.Series{
		bar("2024-01-02", "100", "101", "99", "100", 1_000_000),
		bar("2024-01-12", "100", "101", "99", "100", 1_000_000),
	}
	source := &buyOnceSource{symbol: "AAPL", date: time.Time{}}

	cfg := defaultTestConfig() // CashSweepRateAnnual zero-value
	eng := NewEngine(cfg, defaultTestGate(), source)
	result := eng.Run(map[string]marketdata.Series{"AAPL": bars})

	require.True(t, result.State.Cash.Equal(cfg.InitialCapital))
}
