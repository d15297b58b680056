// Package backtest implements the deterministic, single-threaded bar-by-bar
// state machine: data-quality prefilter, limit-order fills, exit
// evaluation, circuit-breaker probe, entry evaluation, rebalancing, and
// mark-to-market, in that strict order every bar. Generalizes the teacher's
// cmd/backtest/backtest.go RealisticBacktestEngine (loop shape, stats
// tracking conventions) into the specification's exact multi-symbol,
// decimal-quantified phase ordering, adding the data-quality prefilter,
// rebalancing, and margin/drawdown-halt checks the teacher never had.
package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/microstructure"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
)

// Position is one open holding: positive Shares is long, negative is short.
type Position struct {
	Symbol            string
	Shares            decimal.Decimal
	EntryPrice        decimal.Decimal
	EntryDate         time.Time
	StopLoss          decimal.Decimal
	HasStopLoss       bool
	TakeProfit        decimal.Decimal
	HasTakeProfit     bool
	TrailingEnabled   bool
	TrailingPct       decimal.Decimal
	MaxFavorablePrice decimal.Decimal
	RiskAmount        decimal.Decimal
	SizePct           decimal.Decimal
}

func (p Position) Direction() orders.Direction {
	if p.Shares.IsNegative() {
		return orders.Short
	}
	return orders.Long
}

// Trade is one completed round trip.
type Trade struct {
	EntryDate  time.Time
	ExitDate   time.Time
	Symbol     string
	Direction  orders.Direction
	EntryPrice decimal.Decimal
	ExitPrice  decimal.Decimal
	Shares     decimal.Decimal
	GrossPnL   decimal.Decimal
	Commission decimal.Decimal
	NetPnL     decimal.Decimal
	ReturnPct  float64
	ExitReason orders.ExitReason
}

// EquityPoint is one observation on the equity curve.
type EquityPoint struct {
	Date   time.Time
	Equity decimal.Decimal
}

// DataQualityIssue is one flagged anomaly from the prefilter, never fatal.
type DataQualityIssue struct {
	Symbol  string
	Date    time.Time
	Kind    string // zero_volume, ohlc_inconsistent, possible_split, market_event, calendar_gap
	Detail  string
}

// DataQualityReport caps collected issues at 100 entries; never fatal.
type DataQualityReport struct {
	Issues   []DataQualityIssue
	Truncated bool
}

func (r *DataQualityReport) Add(issue DataQualityIssue) {
	const cap = 100
	if len(r.Issues) >= cap {
		r.Truncated = true
		return
	}
	r.Issues = append(r.Issues, issue)
}

// PortfolioState is the backtest's sole mutable state; the engine is its
// only writer.
type PortfolioState struct {
	Cash                   decimal.Decimal
	Positions              map[string]*Position
	PeakEquity             decimal.Decimal
	RealizedPnL            decimal.Decimal
	PendingLimits          []*orders.PendingLimitOrder
	EquityCurve            []EquityPoint
	Trades                 []Trade
	CumulativeMonthlyShares decimal.Decimal
}

func NewPortfolioState(initialCash decimal.Decimal) *PortfolioState {
	return &PortfolioState{
		Cash:       initialCash,
		Positions:  make(map[string]*Position),
		PeakEquity: initialCash,
	}
}

// AllocationStrategy selects how target weights are derived for rebalancing.
type AllocationStrategy int

const (
	AllocationNone AllocationStrategy = iota
	AllocationEqualWeight
	AllocationTargetWeights
)

// Config parameterizes one backtest run.
type Config struct {
	Symbols               []string
	Start, End            time.Time
	InitialCapital        decimal.Decimal
	PositionSizePct       decimal.Decimal
	CommissionModel       microstructure.CommissionModel
	Slippage              microstructure.SlippageModel
	AllowShorting         bool
	MarginMultiplier      decimal.Decimal
	AllowFractionalShares bool
	MaxVolumeParticipation float64 // e.g. 0.1 == 10% of bar volume
	RebalanceIntervalDays int
	Allocation            AllocationStrategy
	TargetWeights         map[string]decimal.Decimal
	DriftTolerancePct     decimal.Decimal
	MaxDrawdownHaltPct    decimal.Decimal
	CashSweepRateAnnual   decimal.Decimal // continuously-compounded daily accrual on idle cash
	ConfidenceThreshold   float64
}

// SignalSource produces trading signals for a symbol dated t, given bars up
// to and including t (no look-ahead). This is the opaque analyze(symbol,
// bars) -> SignalStrength capability named in the specification; concrete
// implementations live in pkg/analysis.
type SignalSource interface {
	SignalsFor(symbol string, t time.Time, barsUpTo marketdata.Series) []orders.Signal
}
