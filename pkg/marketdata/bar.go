// Package marketdata defines the decimal-quantified OHLCV bar shared by
// every downstream component: fetcher, microstructure, orders, backtest.
// Money and share quantities are shopspring/decimal values throughout;
// conversions to float64 are explicit (the ...F64 accessors) and used for
// statistics and indicator scoring.
package marketdata

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the rounding scale (decimal places) applied to money values.
// shopspring/decimal carries full precision internally; Scale only bounds
// the digits kept when a value is persisted or displayed.
const Scale = 8

// Bar is one OHLCV period for one symbol, ordered per symbol by
// non-decreasing Date.
type Bar struct {
	Symbol string
	Date   time.Time // truncated to day; intraday callers keep full precision
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume float64
}

// Validate enforces the data-quality invariants checked by the backtest
// prefilter: low <= open,close <= high, volume >= 0.
func (b Bar) Validate() error {
	if b.Low.GreaterThan(b.Open) || b.Open.GreaterThan(b.High) {
		return fmt.Errorf("bar %s %s: open %s outside [low %s, high %s]", b.Symbol, b.Date.Format("2006-01-02"), b.Open, b.Low, b.High)
	}
	if b.Low.GreaterThan(b.Close) || b.Close.GreaterThan(b.High) {
		return fmt.Errorf("bar %s %s: close %s outside [low %s, high %s]", b.Symbol, b.Date.Format("2006-01-02"), b.Close, b.Low, b.High)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s %s: negative volume %v", b.Symbol, b.Date.Format("2006-01-02"), b.Volume)
	}
	return nil
}

// CloseF64 and friends are the explicit, lossy double conversions used by
// the indicator code in pkg/analysis and the live loop's return series.
func (b Bar) CloseF64() float64 { f, _ := b.Close.Float64(); return f }
func (b Bar) OpenF64() float64  { f, _ := b.Open.Float64(); return f }
func (b Bar) HighF64() float64  { f, _ := b.High.Float64(); return f }
func (b Bar) LowF64() float64   { f, _ := b.Low.Float64(); return f }

// DateKey returns the bar's calendar date as a stable map key.
func (b Bar) DateKey() string { return b.Date.Format("2006-01-02") }

// Series is a per-symbol, date-ordered slice of bars.
type Series []Bar

func (s Series) Len() int           { return len(s) }
func (s Series) Less(i, j int) bool { return s[i].Date.Before(s[j].Date) }
func (s Series) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// AggregateToWeekly groups daily bars into ISO-week bars: open is the first
// bar's open, close the last bar's close, high/low the extremes, volume the
// sum, and the group's date is the date of its last bar.
func AggregateToWeekly(daily Series) Series {
	if len(daily) == 0 {
		return nil
	}
	var out Series
	var group []Bar
	year, week := daily[0].Date.ISOWeek()
	for _, bar := range daily {
		y, w := bar.Date.ISOWeek()
		if y != year || w != week {
			out = append(out, foldWeek(group))
			group = nil
			year, week = y, w
		}
		group = append(group, bar)
	}
	if len(group) > 0 {
		out = append(out, foldWeek(group))
	}
	return out
}

func foldWeek(group []Bar) Bar {
	agg := Bar{
		Symbol: group[0].Symbol,
		Date:   group[len(group)-1].Date,
		Open:   group[0].Open,
		Close:  group[len(group)-1].Close,
		High:   group[0].High,
		Low:    group[0].Low,
	}
	for _, b := range group {
		if b.High.GreaterThan(agg.High) {
			agg.High = b.High
		}
		if b.Low.LessThan(agg.Low) {
			agg.Low = b.Low
		}
		agg.Volume += b.Volume
	}
	return agg
}
