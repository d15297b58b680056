package backtest

import (
	"time"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/risk"
)

// ParamSet is one point in a parameter search space; WalkForward's score
// function ranks the resulting Result (e.g. by Sharpe) so the best in-sample parameters carry
// forward to the out-of-sample test window.
type ParamSet struct {
	Label string
	Apply func(cfg *Config)
}

// Window is one train/test split of the trading calendar.
type Window struct {
	TrainStart, TrainEnd time.Time
	TestStart, TestEnd   time.Time
}

// WalkForward partitions bars into successive train/test windows, fits
// param_search_space on each train window, selects the best by score, and
// evaluates the selected parameters on the corresponding test window.
// Because parameters are chosen using only the train window, no window's
// result depends on data after its own test window — this is what prevents
// look-ahead across the walk-forward sequence.
func WalkForward(
	baseCfg Config,
	windows []Window,
	params []ParamSet,
	bySymbol map[string]marketdata.Series,
	newGate func() *risk.Gate,
	source SignalSource,
	score func(Result) float64,
) []Result {
	var out []Result

	for _, w := range windows {
		trainBars := sliceWindow(bySymbol, w.TrainStart, w.TrainEnd)

		bestScore := negInf
		var bestParams ParamSet
		for _, p := range params {
			cfg := baseCfg
			p.Apply(&cfg)
			cfg.Start, cfg.End = w.TrainStart, w.TrainEnd

			eng := NewEngine(cfg, newGate(), source)
			result := eng.Run(trainBars)
			s := score(result)
			if s > bestScore {
				bestScore = s
				bestParams = p
			}
		}

		testBars := sliceWindow(bySymbol, w.TestStart, w.TestEnd)
		cfg := baseCfg
		if bestParams.Apply != nil {
			bestParams.Apply(&cfg)
		}
		cfg.Start, cfg.End = w.TestStart, w.TestEnd

		eng := NewEngine(cfg, newGate(), source)
		out = append(out, eng.Run(testBars))
	}

	return out
}

const negInf = -1e18

func sliceWindow(bySymbol map[string]marketdata.Series, start, end time.Time) map[string]marketdata.Series {
	out := make(map[string]marketdata.Series, len(bySymbol))
	for symbol, series := range bySymbol {
		var windowed marketdata.Series
		for _, bar := range series {
			if !bar.Date.Before(start) && !bar.Date.After(end) {
				windowed = append(windowed, bar)
			}
		}
		out[symbol] = windowed
	}
	return out
}
