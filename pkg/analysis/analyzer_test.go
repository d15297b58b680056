package analysis

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
)

func mkBars(closes []float64) marketdata.Series {
	bars := make(marketdata.Series, len(closes))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		bars[i] = marketdata.Bar{
			Symbol: "TEST",
			Date:   base.AddDate(0, 0, i),
			Open:   d.Sub(decimal.NewFromFloat(0.1)),
			High:   d.Add(decimal.NewFromFloat(0.5)),
			Low:    d.Sub(decimal.NewFromFloat(0.5)),
			Close:  d,
			Volume: 1_000_000,
		}
	}
	return bars
}

func TestRSIBounds(t *testing.T) {
	rising := mkBars([]float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25})
	rsi := RSI(rising, 14)
	require.GreaterOrEqual(t, rsi, 0.0)
	require.LessOrEqual(t, rsi, 100.0)
	require.Greater(t, rsi, 50.0, "strictly rising closes should push RSI above midline")
}

func TestATRNonNegative(t *testing.T) {
	bars := mkBars([]float64{10, 10.5, 9.8, 10.2, 10.1, 9.9, 10.3})
	atr := ATR(bars, 5)
	require.GreaterOrEqual(t, atr, 0.0)
}

func TestAnalyzerSignalsForRequiresWarmup(t *testing.T) {
	a := New(DefaultParams())
	short := mkBars([]float64{10, 11, 12})
	signals := a.SignalsFor("TEST", short[len(short)-1].Date, short)
	require.Empty(t, signals, "fewer bars than the RSI warmup period must never emit a signal")
}

func TestAnalyzerNoSignalWhenOverbought(t *testing.T) {
	a := New(DefaultParams())
	closes := make([]float64, 0, 30)
	for i := 0; i < 30; i++ {
		closes = append(closes, 10+float64(i)*2) // relentless uptrend -> RSI pinned high
	}
	bars := mkBars(closes)
	signals := a.SignalsFor("TEST", bars[len(bars)-1].Date, bars)
	require.Empty(t, signals, "overbought RSI must suppress entries regardless of model score")
}

func TestDetectPatternDoji(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := marketdata.Series{{
		Symbol: "TEST", Date: base,
		Open: decimal.NewFromFloat(10), Close: decimal.NewFromFloat(10.01),
		High: decimal.NewFromFloat(10.5), Low: decimal.NewFromFloat(9.5), Volume: 100,
	}}
	require.Equal(t, PatternDoji, DetectPattern(bars))
}
