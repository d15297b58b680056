package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/microstructure"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
	"github.com/ridgeline-quant/ntengine/pkg/risk"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func bar(date string, o, h, l, c string, vol float64) marketdata.Bar {
	t, _ := time.Parse("2006-01-02", date)
	return marketdata.Bar{Symbol: "AAPL", Date: t, Open: d(o), High: d(h), Low: d(l), Close: d(c), Volume: vol}
}

// buyOnceSource emits a single Buy market signal on its configured date and
// nothing else.
type buyOnceSource struct {
	symbol string
	date   time.Time
	fired  bool
}

func (s *buyOnceSource) SignalsFor(symbol string, t time.Time, _ marketdata.Series) []orders.Signal {
	if symbol != s.symbol || s.fired || !t.Equal(s.date) {
		return nil
	}
	s.fired = true
	return []orders.Signal{{Symbol: symbol, Type: orders.Buy, Confidence: 0.9, Price: d("100"), OrderType: orders.Market}}
}

func defaultTestConfig() Config {
	return Config{
		Symbols:               []string{"AAPL"},
		InitialCapital:        d("100000"),
		PositionSizePct:       d("10"),
		CommissionModel:       microstructure.DefaultCommissionModel(),
		Slippage:              microstructure.PercentSlippage{Pct: d("0")},
		AllowFractionalShares: true,
		ConfidenceThreshold:   0.5,
	}
}

func defaultTestGate() *risk.Gate {
	return risk.NewGate(risk.Parameters{
		MaxRiskPerTradePct: d("1"), MaxPortfolioRiskPct: d("50"), MaxPositionSizePct: d("50"),
		DefaultStopLossPct: d("5"), DefaultTakeProfitPct: d("10"),
		TrailingStopEnabled: true, TrailingStopPct: d("5"),
		MinConfidence: 0.5, DailyLossLimitPct: d("50"), MaxConsecutiveLosses: 10, DrawdownLimitPct: d("50"),
	})
}

func TestEquityIdentityAndPeakMonotonicity(t *testing.T) {
	bars := marketdata.Series{
		bar("2024-01-02", "100", "101", "99", "100", 1_000_000),
		bar("2024-01-03", "100", "105", "99", "103", 1_000_000),
		bar("2024-01-04", "103", "104", "95", "96", 1_000_000),
		bar("2024-01-05", "96", "99", "94", "98", 1_000_000),
	}
	d2, _ := time.Parse("2006-01-02", "2024-01-02")
	source := &buyOnceSource{symbol: "AAPL", date: d2}

	cfg := defaultTestConfig()
	eng := NewEngine(cfg, defaultTestGate(), source)
	result := eng.Run(map[string]marketdata.Series{"AAPL": bars})

	require.NotEmpty(t, result.State.EquityCurve)

	// Peak monotonicity: the recorded peak must equal the running maximum
	// of the equity curve, and must never have decreased bar over bar.
	running := result.State.EquityCurve[0].Equity
	for _, pt := range result.State.EquityCurve {
		if pt.Equity.GreaterThan(running) {
			running = pt.Equity
		}
	}
	require.True(t, result.State.PeakEquity.Equal(running))

	// Equity identity at the final bar: cash + sum(shares*mark) == recorded equity.
	finalBar := bars[len(bars)-1]
	recomputed := result.State.Cash
	for _, pos := range result.State.Positions {
		recomputed = recomputed.Add(orders.MarkToMarket(pos.Direction(), pos.EntryPrice, finalBar.Close, pos.Shares.Abs()))
	}
	lastPoint := result.State.EquityCurve[len(result.State.EquityCurve)-1]
	diff := recomputed.Sub(lastPoint.Equity).Abs()
	require.True(t, diff.LessThan(d("0.000000001")), "equity identity violated: recomputed=%s recorded=%s", recomputed, lastPoint.Equity)
}

func TestCashNeverNegativeWithoutShorting(t *testing.T) {
	bars := marketdata.Series{
		bar("2024-01-02", "100", "101", "99", "100", 1_000_000),
		bar("2024-01-03", "90", "92", "89", "91", 1_000_000),
	}
	d2, _ := time.Parse("2006-01-02", "2024-01-02")
	source := &buyOnceSource{symbol: "AAPL", date: d2}

	cfg := defaultTestConfig()
	eng := NewEngine(cfg, defaultTestGate(), source)
	result := eng.Run(map[string]marketdata.Series{"AAPL": bars})

	require.True(t, result.State.Cash.GreaterThanOrEqual(decimal.Zero), "cash went negative: %s", result.State.Cash)
}

func TestDataQualityReportCapsAtOneHundred(t *testing.T) {
	var series marketdata.Series
	base, _ := time.Parse("2006-01-02", "2024-01-01")
	for i := 0; i < 150; i++ {
		series = append(series, marketdata.Bar{
			Symbol: "AAPL", Date: base.AddDate(0, 0, i),
			Open: d("100"), High: d("100"), Low: d("100"), Close: d("100"), Volume: 0,
		})
	}
	var report DataQualityReport
	runDataQualityPrefilter(map[string]marketdata.Series{"AAPL": series}, &report)
	require.LessOrEqual(t, len(report.Issues), 100)
	require.True(t, report.Truncated)
}
