package risk

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/logging"
	"github.com/ridgeline-quant/ntengine/pkg/regime"
)

// TradeOutcome is one closed trade's realized P&L, used to derive the
// consecutive-losses count.
type TradeOutcome struct {
	Symbol string
	PnL    decimal.Decimal
}

// CircuitBreakerResult is the result envelope for check_circuit_breakers:
// a decision, never an error.
type CircuitBreakerResult struct {
	CanTrade bool
	Reasons  []string
}

// TradeRiskResult is the result envelope for check_trade_risk.
type TradeRiskResult struct {
	CanTrade        bool
	Reason          string
	SuggestedAction string
}

// ExitAlert flags a position whose stop has been breached.
type ExitAlert struct {
	Symbol     string
	ShouldExit bool
	Reason     string
}

// trackedPosition is the gate's view of an open position for trailing-stop
// and stop-loss bookkeeping; it mirrors but does not own the backtest's or
// broker's canonical position record.
type trackedPosition struct {
	Symbol        string
	IsLong        bool
	Entry         decimal.Decimal
	StopLoss      decimal.Decimal
	TakeProfit    decimal.Decimal
	MaxPriceSeen  decimal.Decimal
	TrailingPct   decimal.Decimal
	HasTrailing   bool
}

// Gate is the risk gate. All mutating operations are serialized behind mu,
// matching the specification's "all writes serialized behind a single
// mutex on the parameter/peak records."
type Gate struct {
	mu sync.Mutex

	params Parameters
	log    zerolog.Logger

	peakEquity   decimal.Decimal
	recentTrades []TradeOutcome // most recent last

	positions map[string]*trackedPosition

	regimeThresholds regime.Thresholds
}

func NewGate(params Parameters) *Gate {
	return &Gate{
		params:           params,
		log:              logging.For("risk"),
		peakEquity:       decimal.Zero,
		positions:        make(map[string]*trackedPosition),
		regimeThresholds: regime.DefaultThresholds(),
	}
}

// SetHalted flips the manual halt flag (e.g. from an operator command).
func (g *Gate) SetHalted(halted bool, reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.params.TradingHalted = halted
	g.params.HaltReason = reason
}

// RecordTrade appends a closed trade's outcome to the recent-trade history
// used to compute consecutive losses.
func (g *Gate) RecordTrade(outcome TradeOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recentTrades = append(g.recentTrades, outcome)
	const maxHistory = 200
	if len(g.recentTrades) > maxHistory {
		g.recentTrades = g.recentTrades[len(g.recentTrades)-maxHistory:]
	}
}

func (g *Gate) consecutiveLossesLocked() int {
	count := 0
	for i := len(g.recentTrades) - 1; i >= 0; i-- {
		if g.recentTrades[i].PnL.LessThan(decimal.Zero) {
			count++
			continue
		}
		break
	}
	return count
}

// CheckCircuitBreakers implements §4.E: any one trigger vetoes new entries.
// Peak equity is updated here as the monotonic high-water mark on every
// observation of portfolioValue.
func (g *Gate) CheckCircuitBreakers(portfolioValue, dailyPnL decimal.Decimal) CircuitBreakerResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if portfolioValue.GreaterThan(g.peakEquity) {
		g.peakEquity = portfolioValue
	}

	var reasons []string

	if g.params.TradingHalted {
		reasons = append(reasons, "manual_halt")
	}

	if portfolioValue.GreaterThan(decimal.Zero) && dailyPnL.LessThan(decimal.Zero) {
		lossPct := dailyPnL.Abs().Div(portfolioValue).Mul(decimal.NewFromInt(100))
		if lossPct.GreaterThanOrEqual(g.params.DailyLossLimitPct) {
			reasons = append(reasons, "daily_loss")
		}
	}

	if g.consecutiveLossesLocked() >= g.params.MaxConsecutiveLosses && g.params.MaxConsecutiveLosses > 0 {
		reasons = append(reasons, "consecutive_losses")
	}

	if g.peakEquity.GreaterThan(decimal.Zero) {
		drawdownPct := g.peakEquity.Sub(portfolioValue).Div(g.peakEquity).Mul(decimal.NewFromInt(100))
		if drawdownPct.GreaterThanOrEqual(g.params.DrawdownLimitPct) {
			reasons = append(reasons, "drawdown")
		}
	}

	return CircuitBreakerResult{CanTrade: len(reasons) == 0, Reasons: reasons}
}

// CheckTradeRisk implements check_trade_risk: rejects on low confidence or
// on a new position pushing portfolio/position exposure past its caps.
func (g *Gate) CheckTradeRisk(confidence float64, portfolioValue, currentExposure, newPositionNotional decimal.Decimal) TradeRiskResult {
	g.mu.Lock()
	defer g.mu.Unlock()

	if confidence < g.params.MinConfidence {
		return TradeRiskResult{CanTrade: false, Reason: "confidence_below_threshold"}
	}

	if portfolioValue.LessThanOrEqual(decimal.Zero) {
		return TradeRiskResult{CanTrade: false, Reason: "invalid_portfolio_value"}
	}

	projectedExposurePct := currentExposure.Add(newPositionNotional).Div(portfolioValue).Mul(decimal.NewFromInt(100))
	if projectedExposurePct.GreaterThan(g.params.MaxPortfolioRiskPct) {
		return TradeRiskResult{CanTrade: false, Reason: "exceeds_max_portfolio_risk", SuggestedAction: "reduce_size_or_skip"}
	}

	positionPct := newPositionNotional.Div(portfolioValue).Mul(decimal.NewFromInt(100))
	if positionPct.GreaterThan(g.params.MaxPositionSizePct) {
		return TradeRiskResult{CanTrade: false, Reason: "exceeds_max_position_size", SuggestedAction: "cap_to_max_position_size"}
	}

	return TradeRiskResult{CanTrade: true}
}

// SizePosition implements size_position: risk-based sizing scaled by the
// regime multiplier and capped at max_position_size% of portfolio value.
func (g *Gate) SizePosition(confidence float64, price, portfolioValue decimal.Decimal, r regime.Regime) decimal.Decimal {
	g.mu.Lock()
	params := g.params
	thresholds := g.regimeThresholds
	g.mu.Unlock()

	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	riskAmount := portfolioValue.Mul(params.MaxRiskPerTradePct).Div(decimal.NewFromInt(100))
	stopDistance := price.Mul(params.DefaultStopLossPct).Div(decimal.NewFromInt(100))
	if stopDistance.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}

	baseShares := riskAmount.Div(stopDistance)

	multiplier := decimal.NewFromFloat(thresholds.Multiplier(r))
	sized := baseShares.Mul(multiplier)

	maxShares := portfolioValue.Mul(params.MaxPositionSizePct).Div(decimal.NewFromInt(100)).Div(price)
	if sized.GreaterThan(maxShares) {
		sized = maxShares
	}
	if sized.LessThan(decimal.Zero) {
		sized = decimal.Zero
	}
	return sized
}

// SetRegimeThresholds overrides the default regime classification config.
func (g *Gate) SetRegimeThresholds(t regime.Thresholds) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.regimeThresholds = t
}

// OpenPosition registers a position with the gate for subsequent trailing-
// stop ratcheting and stop-loss checks.
func (g *Gate) OpenPosition(symbol string, isLong bool, entry, stopLoss, takeProfit decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.positions[symbol] = &trackedPosition{
		Symbol:       symbol,
		IsLong:       isLong,
		Entry:        entry,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
		MaxPriceSeen: entry,
		TrailingPct:  g.params.TrailingStopPct,
		HasTrailing:  g.params.TrailingStopEnabled,
	}
}

func (g *Gate) ClosePosition(symbol string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.positions, symbol)
}

// UpdateTrailingStop ratchets max_price_seen and recomputes the stop from
// the trailing percentage. Never lowers a long's stop or raises a short's.
func (g *Gate) UpdateTrailingStop(symbol string, price decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pos, ok := g.positions[symbol]
	if !ok || !pos.HasTrailing {
		return
	}

	if pos.IsLong {
		if price.GreaterThan(pos.MaxPriceSeen) {
			pos.MaxPriceSeen = price
		}
		candidate := pos.MaxPriceSeen.Mul(decimal.NewFromInt(1).Sub(pos.TrailingPct.Div(decimal.NewFromInt(100))))
		if candidate.GreaterThan(pos.StopLoss) {
			pos.StopLoss = candidate
		}
		return
	}

	if pos.MaxPriceSeen.IsZero() || price.LessThan(pos.MaxPriceSeen) {
		pos.MaxPriceSeen = price
	}
	candidate := pos.MaxPriceSeen.Mul(decimal.NewFromInt(1).Add(pos.TrailingPct.Div(decimal.NewFromInt(100))))
	if candidate.LessThan(pos.StopLoss) || pos.StopLoss.IsZero() {
		pos.StopLoss = candidate
	}
}

// CheckStopLosses evaluates every tracked position's current price against
// its stop and take-profit levels and returns exit alerts for hits.
func (g *Gate) CheckStopLosses(prices map[string]decimal.Decimal) []ExitAlert {
	g.mu.Lock()
	defer g.mu.Unlock()

	var alerts []ExitAlert
	for symbol, pos := range g.positions {
		price, ok := prices[symbol]
		if !ok {
			continue
		}
		breached := false
		if pos.IsLong && price.LessThanOrEqual(pos.StopLoss) {
			breached = true
		}
		if !pos.IsLong && price.GreaterThanOrEqual(pos.StopLoss) {
			breached = true
		}
		if breached {
			alerts = append(alerts, ExitAlert{Symbol: symbol, ShouldExit: true, Reason: "stop_loss"})
			continue
		}
		if !pos.TakeProfit.IsZero() &&
			((pos.IsLong && price.GreaterThanOrEqual(pos.TakeProfit)) ||
				(!pos.IsLong && price.LessThanOrEqual(pos.TakeProfit))) {
			alerts = append(alerts, ExitAlert{Symbol: symbol, ShouldExit: true, Reason: "take_profit"})
		}
	}
	return alerts
}

func (g *Gate) StopLossFor(symbol string) (decimal.Decimal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pos, ok := g.positions[symbol]
	if !ok {
		return decimal.Zero, false
	}
	return pos.StopLoss, true
}

func (g *Gate) Params() Parameters {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params
}
