package backtest

import (
	"fmt"
	"time"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
)

// runDataQualityPrefilter runs once before the bar loop: zero-volume bars,
// OHLC inconsistencies, >20% daily moves (flagged as a possible split if the
// ratio is ~0.5 or ~2.0 within tolerance, else a market event if >50%), and
// calendar gaps >4 days. Warning-only: never auto-adjusts prices (see
// DESIGN.md open-question resolutions).
func runDataQualityPrefilter(bySymbol map[string]marketdata.Series, report *DataQualityReport) {
	for symbol, series := range bySymbol {
		var prev *marketdata.Bar
		for i := range series {
			bar := series[i]

			if err := bar.Validate(); err != nil {
				report.Add(DataQualityIssue{Symbol: symbol, Date: bar.Date, Kind: "ohlc_inconsistent", Detail: err.Error()})
			}
			if bar.Volume == 0 {
				report.Add(DataQualityIssue{Symbol: symbol, Date: bar.Date, Kind: "zero_volume"})
			}

			if prev != nil {
				checkMove(symbol, *prev, bar, report)
				checkCalendarGap(symbol, *prev, bar, report)
			}
			prev = &series[i]
		}
	}
}

func checkMove(symbol string, prev, cur marketdata.Bar, report *DataQualityReport) {
	if prev.Close.IsZero() {
		return
	}
	ratio, _ := cur.Close.Div(prev.Close).Float64()
	move := ratio - 1.0
	absMove := move
	if absMove < 0 {
		absMove = -absMove
	}
	if absMove <= 0.20 {
		return
	}

	switch {
	case closeTo(ratio, 0.5, 0.05) || closeTo(ratio, 2.0, 0.10):
		report.Add(DataQualityIssue{
			Symbol: symbol, Date: cur.Date, Kind: "possible_split",
			Detail: fmt.Sprintf("close ratio %.4f vs prior close", ratio),
		})
	case absMove > 0.50:
		report.Add(DataQualityIssue{
			Symbol: symbol, Date: cur.Date, Kind: "market_event",
			Detail: fmt.Sprintf("daily move %.2f%%", move*100),
		})
	}
}

func closeTo(v, target, tolerance float64) bool {
	diff := v - target
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

func checkCalendarGap(symbol string, prev, cur marketdata.Bar, report *DataQualityReport) {
	gap := cur.Date.Sub(prev.Date)
	if gap > 4*24*time.Hour {
		report.Add(DataQualityIssue{
			Symbol: symbol, Date: cur.Date, Kind: "calendar_gap",
			Detail: fmt.Sprintf("%.0f days since prior bar", gap.Hours()/24),
		})
	}
}
