package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
)

// sellOnceSource emits a single Sell signal on its configured date and
// nothing else; when no position is open a Sell is a short-entry signal.
type sellOnceSource struct {
	symbol string
	date   time.Time
	fired  bool
}

func (s *sellOnceSource) SignalsFor(symbol string, t time.Time, _ marketdata.Series) []orders.Signal {
	if symbol != s.symbol || s.fired || !t.Equal(s.date) {
		return nil
	}
	s.fired = true
	return []orders.Signal{{Symbol: symbol, Type: orders.Sell, Confidence: 0.9, Price: d("100"), OrderType: orders.Market}}
}

func shortTestBars() marketdata.Series {
	return marketdata.Series{
		bar("2024-01-02", "100", "101", "99", "100", 1_000_000),
		bar("2024-01-03", "95", "96", "90", "91", 1_000_000),
		bar("2024-01-04", "91", "92", "88", "89", 1_000_000),
	}
}

func TestShortEntryUnreachableWithoutAllowShorting(t *testing.T) {
	bars := shortTestBars()
	d2, _ := time.Parse("2006-01-02", "2024-01-02")
	source := &sellOnceSource{symbol: "AAPL", date: d2}

	cfg := defaultTestConfig() // AllowShorting defaults to false
	eng := NewEngine(cfg, defaultTestGate(), source)
	result := eng.Run(map[string]marketdata.Series{"AAPL": bars})

	require.Empty(t, result.State.Trades, "a Sell signal must not open a short when AllowShorting is false")
	require.Empty(t, result.State.Positions)
}

// TestShortEntryRoundTrip exercises the engine end-to-end: a Sell signal
// opens a negative-Shares position, the short-side take-profit triggers via
// CheckStopTakeProfit, and the realized P&L is positive on a declining
// price path -- the inverse of a long trade.
func TestShortEntryRoundTrip(t *testing.T) {
	bars := shortTestBars()
	d2, _ := time.Parse("2006-01-02", "2024-01-02")
	source := &sellOnceSource{symbol: "AAPL", date: d2}

	cfg := defaultTestConfig()
	cfg.AllowShorting = true
	cfg.MarginMultiplier = d("2")
	eng := NewEngine(cfg, defaultTestGate(), source)
	result := eng.Run(map[string]marketdata.Series{"AAPL": bars})

	require.Len(t, result.State.Trades, 1)
	trade := result.State.Trades[0]
	require.Equal(t, orders.Short, trade.Direction)
	require.True(t, trade.EntryPrice.Equal(d("100")))
	require.True(t, trade.NetPnL.GreaterThan(decimal.Zero),
		"shorting into a price decline should realize a profit: got %s", trade.NetPnL)
}

// TestShortEntryRespectsMarginMultiplier is Testable Property #1: with
// shorting and margin multiplier m, a new short's notional must not push
// positions_notional past cash*m at entry time. A too-tight multiplier
// blocks the entry outright rather than opening an undercollateralized
// short.
func TestShortEntryRespectsMarginMultiplier(t *testing.T) {
	bars := shortTestBars()
	d2, _ := time.Parse("2006-01-02", "2024-01-02")
	source := &sellOnceSource{symbol: "AAPL", date: d2}

	cfg := defaultTestConfig()
	cfg.AllowShorting = true
	cfg.MarginMultiplier = d("0.1") // far below the sized position's notional
	eng := NewEngine(cfg, defaultTestGate(), source)
	result := eng.Run(map[string]marketdata.Series{"AAPL": bars})

	require.Empty(t, result.State.Trades, "entry exceeding cash*margin must be rejected")
}
