package backtest

import (
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/logging"
	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/microstructure"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
	"github.com/ridgeline-quant/ntengine/pkg/regime"
	"github.com/ridgeline-quant/ntengine/pkg/risk"
)

// Engine runs one deterministic, single-threaded backtest. It is not safe
// for concurrent use; independent backtests (e.g. parameter grids) should
// each construct their own Engine.
type Engine struct {
	cfg    Config
	gate   *risk.Gate
	margin *microstructure.MarginAccount
	source SignalSource
	log    zerolog.Logger

	state       *PortfolioState
	quality     DataQualityReport
	regimeTh    regime.Thresholds
	dailyReturn []float64 // rolling window fed to the regime classifier
	halted      bool
	haltDate    time.Time
	lastRebalance time.Time
	lastSweepDate time.Time
}

func NewEngine(cfg Config, gate *risk.Gate, source SignalSource) *Engine {
	return &Engine{
		cfg:      cfg,
		gate:     gate,
		margin:   microstructure.NewMarginAccount(cfg.MarginMultiplier),
		source:   source,
		log:      logging.For("backtest"),
		state:    NewPortfolioState(cfg.InitialCapital),
		regimeTh: regime.DefaultThresholds(),
	}
}

// Result is everything a backtest run produces: the final state, warnings,
// and the reason it stopped (if halted early).
type Result struct {
	State   *PortfolioState
	Quality DataQualityReport
	Halted  bool
	HaltReason string
}

// Run executes the full 7-phase bar loop over the unioned trading calendar
// implied by bySymbol. Phases never overlap and always run in order
// (2)->(3)->(4)->(5)->(6)->(7), with the data-quality prefilter (1) run
// once before the loop starts.
func (e *Engine) Run(bySymbol map[string]marketdata.Series) Result {
	runDataQualityPrefilter(bySymbol, &e.quality)

	calendar := unionDates(bySymbol)
	barIndex := indexBySymbolDate(bySymbol)

	for _, t := range calendar {
		if e.halted {
			break
		}
		todaysBars := barsOn(bySymbol, barIndex, t)

		e.fillPendingLimits(todaysBars)
		e.evaluateExits(t, todaysBars)
		breakerResult := e.probeCircuitBreaker(t)
		if breakerResult.CanTrade {
			e.evaluateEntries(t, todaysBars, bySymbol)
		}
		e.maybeRebalance(t, todaysBars)
		e.markToMarket(t, todaysBars)
	}

	reason := ""
	if e.halted {
		reason = "max_drawdown_halt"
	}
	return Result{State: e.state, Quality: e.quality, Halted: e.halted, HaltReason: reason}
}

func unionDates(bySymbol map[string]marketdata.Series) []time.Time {
	seen := make(map[string]time.Time)
	for _, series := range bySymbol {
		for _, bar := range series {
			seen[bar.DateKey()] = bar.Date
		}
	}
	out := make([]time.Time, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func indexBySymbolDate(bySymbol map[string]marketdata.Series) map[string]map[string]int {
	idx := make(map[string]map[string]int)
	for symbol, series := range bySymbol {
		m := make(map[string]int, len(series))
		for i, bar := range series {
			m[bar.DateKey()] = i
		}
		idx[symbol] = m
	}
	return idx
}

func barsOn(bySymbol map[string]marketdata.Series, barIndex map[string]map[string]int, t time.Time) map[string]marketdata.Bar {
	key := t.Format("2006-01-02")
	out := make(map[string]marketdata.Bar)
	for symbol, m := range barIndex {
		if i, ok := m[key]; ok {
			out[symbol] = bySymbol[symbol][i]
		}
	}
	return out
}

// sortedSymbols returns the symbols present in todaysBars in lexicographic
// order, used to break same-date exit ties deterministically.
func sortedSymbols(todaysBars map[string]marketdata.Bar) []string {
	out := make([]string, 0, len(todaysBars))
	for s := range todaysBars {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) equity(todaysBars map[string]marketdata.Bar) decimal.Decimal {
	total := e.state.Cash
	for symbol, pos := range e.state.Positions {
		price := pos.EntryPrice
		if bar, ok := todaysBars[symbol]; ok {
			price = bar.Close
		}
		total = total.Add(orders.MarkToMarket(pos.Direction(), pos.EntryPrice, price, pos.Shares.Abs()))
	}
	return total
}
