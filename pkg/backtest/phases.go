package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
	"github.com/ridgeline-quant/ntengine/pkg/regime"
	"github.com/ridgeline-quant/ntengine/pkg/risk"
)

// phase 2: fill pending limit orders using bar t's (low, high).
func (e *Engine) fillPendingLimits(todaysBars map[string]marketdata.Bar) {
	var remaining []*orders.PendingLimitOrder
	for _, pending := range e.state.PendingLimits {
		bar, ok := todaysBars[pending.Signal.Symbol]
		if !ok {
			remaining = append(remaining, pending)
			continue
		}

		fillPrice, filled := orders.TryFillLimit(pending, bar.Low, bar.High)
		if filled {
			e.executeFill(pending.Signal.Symbol, pending.Direction, fillPrice, bar)
			continue
		}
		if orders.DecrementOrExpire(pending) {
			continue // dropped: expired without trigger
		}
		remaining = append(remaining, pending)
	}
	e.state.PendingLimits = remaining
}

// phase 3: exits in order (a) gap-through SL/TP, (b) trailing update,
// (c) explicit sell signals, with equal-date ties broken by symbol order.
func (e *Engine) evaluateExits(t time.Time, todaysBars map[string]marketdata.Bar) {
	symbols := sortedSymbols(todaysBars)

	for _, symbol := range symbols {
		pos, open := e.state.Positions[symbol]
		if !open {
			continue
		}
		bar := todaysBars[symbol]

		fillPrice, reason, hit := orders.CheckStopTakeProfit(
			pos.Direction(), bar.Open, bar.High, bar.Low,
			pos.StopLoss, pos.TakeProfit, pos.HasStopLoss, pos.HasTakeProfit,
		)
		if hit {
			e.closePosition(symbol, fillPrice, bar.Date, reason)
			continue
		}

		if pos.TrailingEnabled {
			e.gate.UpdateTrailingStop(symbol, bar.Close)
			if newStop, ok := e.gate.StopLossFor(symbol); ok {
				pos.StopLoss = newStop
			}
		}
	}

	for _, symbol := range symbols {
		pos, open := e.state.Positions[symbol]
		if !open {
			continue
		}
		bar := todaysBars[symbol]
		// a long exits on a Sell signal; a short exits on a Buy signal
		// (covering), mirroring the asymmetric long/short fill semantics
		// in pkg/orders.
		exitOn := orders.Sell
		if pos.Direction() == orders.Short {
			exitOn = orders.Buy
		}
		for _, sig := range e.source.SignalsFor(symbol, t, nil) {
			if sig.Type == exitOn && !sig.Price.IsZero() {
				e.closePosition(symbol, bar.Close, bar.Date, orders.ExitSignal)
				break
			}
		}
	}
}

// phase 4: circuit-breaker probe; exits already proceeded above regardless.
func (e *Engine) probeCircuitBreaker(t time.Time) risk.CircuitBreakerResult {
	eq := e.equity(nil)
	dailyPnL := decimal.Zero
	if n := len(e.state.EquityCurve); n > 0 {
		dailyPnL = eq.Sub(e.state.EquityCurve[n-1].Equity)
	}
	return e.gate.CheckCircuitBreakers(eq, dailyPnL)
}

// phase 5: entry signals dated t, filtered by confidence, sized via the
// risk gate, clipped by max volume participation. Buy signals open longs;
// sell signals open shorts when AllowShorting is set (and are otherwise
// ignored here — a flat symbol has nothing to exit).
func (e *Engine) evaluateEntries(t time.Time, todaysBars map[string]marketdata.Bar, bySymbol map[string]marketdata.Series) {
	symbols := sortedSymbols(todaysBars)
	portfolioValue := e.equity(todaysBars)
	currentRegime, _ := regime.Classify(e.dailyReturn, e.regimeTh)

	for _, symbol := range symbols {
		if _, alreadyOpen := e.state.Positions[symbol]; alreadyOpen {
			continue
		}
		bar := todaysBars[symbol]

		for _, sig := range e.source.SignalsFor(symbol, t, upTo(bySymbol[symbol], t)) {
			if sig.Confidence < e.cfg.ConfidenceThreshold {
				continue
			}

			switch sig.Type {
			case orders.Buy:
				if sig.OrderType == orders.Limit {
					e.state.PendingLimits = append(e.state.PendingLimits, &orders.PendingLimitOrder{
						Signal: sig, BarsRemaining: sig.LimitExpiryBars, Direction: orders.Buy,
					})
					continue
				}
				e.tryEnter(symbol, bar, sig, portfolioValue, currentRegime, todaysBars, false)

			case orders.Sell:
				if !e.cfg.AllowShorting {
					continue
				}
				// short entries trade at market only; limit-order shorting
				// is a future extension.
				e.tryEnter(symbol, bar, sig, portfolioValue, currentRegime, todaysBars, true)
			}
		}
	}
}

// tryEnter sizes a candidate entry via the risk gate's regime-scaled sizing,
// clips it to the volume-participation cap, and risk-checks it before
// opening the position. Short entries additionally respect
// Config.MarginMultiplier against current cash (Testable Property #1:
// positions_notional <= cash*margin at entry time).
func (e *Engine) tryEnter(symbol string, bar marketdata.Bar, sig orders.Signal, portfolioValue decimal.Decimal, currentRegime regime.Regime, todaysBars map[string]marketdata.Bar, short bool) {
	shares := e.gate.SizePosition(sig.Confidence, bar.Open, portfolioValue, currentRegime)
	if !e.cfg.AllowFractionalShares {
		shares = shares.Truncate(0)
	}
	maxByVolume := decimal.NewFromFloat(bar.Volume * e.cfg.MaxVolumeParticipation)
	if e.cfg.MaxVolumeParticipation > 0 && shares.GreaterThan(maxByVolume) {
		shares = maxByVolume
	}
	if shares.LessThanOrEqual(decimal.Zero) {
		return
	}

	notional := shares.Mul(bar.Open)
	riskResult := e.gate.CheckTradeRisk(sig.Confidence, portfolioValue, e.exposureNotional(todaysBars), notional)
	if !riskResult.CanTrade {
		return
	}

	if !short {
		e.openPosition(symbol, shares, bar)
		return
	}

	if e.cfg.MarginMultiplier.GreaterThan(decimal.Zero) {
		limit := e.state.Cash.Mul(e.cfg.MarginMultiplier)
		if e.exposureNotional(todaysBars).Add(notional).GreaterThan(limit) {
			return
		}
	}
	e.openShortPosition(symbol, shares, bar)
}

func upTo(series marketdata.Series, t time.Time) marketdata.Series {
	out := make(marketdata.Series, 0, len(series))
	for _, b := range series {
		if !b.Date.After(t) {
			out = append(out, b)
		}
	}
	return out
}

func (e *Engine) exposureNotional(todaysBars map[string]marketdata.Bar) decimal.Decimal {
	total := decimal.Zero
	for symbol, pos := range e.state.Positions {
		price := pos.EntryPrice
		if bar, ok := todaysBars[symbol]; ok {
			price = bar.Close
		}
		total = total.Add(pos.Shares.Abs().Mul(price))
	}
	return total
}

// phase 6: rebalance if the configured interval has elapsed.
func (e *Engine) maybeRebalance(t time.Time, todaysBars map[string]marketdata.Bar) {
	if e.cfg.RebalanceIntervalDays <= 0 || e.cfg.Allocation != AllocationTargetWeights {
		return
	}
	if !e.lastRebalance.IsZero() && t.Sub(e.lastRebalance) < time.Duration(e.cfg.RebalanceIntervalDays)*24*time.Hour {
		return
	}
	e.lastRebalance = t

	portfolioValue := e.equity(todaysBars)
	if portfolioValue.LessThanOrEqual(decimal.Zero) {
		return
	}

	for symbol, targetWeight := range e.cfg.TargetWeights {
		bar, ok := todaysBars[symbol]
		if !ok {
			continue
		}
		targetNotional := portfolioValue.Mul(targetWeight)
		currentNotional := decimal.Zero
		if pos, held := e.state.Positions[symbol]; held {
			currentNotional = pos.Shares.Abs().Mul(bar.Close)
		}
		driftPct := targetNotional.Sub(currentNotional).Abs().Div(portfolioValue).Mul(decimal.NewFromInt(100))
		if driftPct.LessThan(e.cfg.DriftTolerancePct) {
			continue
		}
		// incremental mode: only trade symbols exceeding drift tolerance
		delta := targetNotional.Sub(currentNotional)
		if delta.GreaterThan(decimal.Zero) {
			shares := delta.Div(bar.Close)
			e.openOrAddPosition(symbol, shares, bar)
		} else if pos, held := e.state.Positions[symbol]; held {
			sellShares := delta.Abs().Div(bar.Close)
			if sellShares.GreaterThanOrEqual(pos.Shares.Abs()) {
				e.closePosition(symbol, bar.Close, bar.Date, orders.ExitSignal)
			}
		}
	}
}

// applyCashSweep accrues CashSweepRateAnnual on idle cash, continuously
// compounded over the calendar days elapsed since the last bar processed.
func (e *Engine) applyCashSweep(t time.Time) {
	if e.lastSweepDate.IsZero() {
		e.lastSweepDate = t
		return
	}
	days := t.Sub(e.lastSweepDate).Hours() / 24
	e.lastSweepDate = t
	if days <= 0 || e.cfg.CashSweepRateAnnual.LessThanOrEqual(decimal.Zero) {
		return
	}
	if e.state.Cash.LessThanOrEqual(decimal.Zero) {
		return
	}

	rate, _ := e.cfg.CashSweepRateAnnual.Float64()
	growth := math.Exp(rate * days / 365.0)
	e.state.Cash = e.state.Cash.Mul(decimal.NewFromFloat(growth))
}

// phase 7: cash-sweep accrual, mark-to-market, equity curve, peak, margin
// utilization, halt.
func (e *Engine) markToMarket(t time.Time, todaysBars map[string]marketdata.Bar) {
	e.applyCashSweep(t)
	eq := e.equity(todaysBars)
	e.state.EquityCurve = append(e.state.EquityCurve, EquityPoint{Date: t, Equity: eq})

	if eq.GreaterThan(e.state.PeakEquity) {
		e.state.PeakEquity = eq
	}

	if ret, ok := dailyReturnFrom(e.state.EquityCurve); ok {
		e.dailyReturn = append(e.dailyReturn, ret)
		const maxLookback = 60
		if len(e.dailyReturn) > maxLookback {
			e.dailyReturn = e.dailyReturn[len(e.dailyReturn)-maxLookback:]
		}
	}

	e.margin.RecordUtilization(e.exposureNotional(todaysBars), eq)

	if e.cfg.MaxDrawdownHaltPct.GreaterThan(decimal.Zero) && e.state.PeakEquity.GreaterThan(decimal.Zero) {
		drawdown := e.state.PeakEquity.Sub(eq).Div(e.state.PeakEquity).Mul(decimal.NewFromInt(100))
		if drawdown.GreaterThanOrEqual(e.cfg.MaxDrawdownHaltPct) {
			e.closeAllPositions(t, todaysBars)
			e.halted = true
			e.haltDate = t
		}
	}
}

func dailyReturnFrom(curve []EquityPoint) (float64, bool) {
	if len(curve) < 2 {
		return 0, false
	}
	prev := curve[len(curve)-2].Equity
	cur := curve[len(curve)-1].Equity
	if prev.IsZero() {
		return 0, false
	}
	f, _ := cur.Sub(prev).Div(prev).Float64()
	return f, true
}

func (e *Engine) closeAllPositions(t time.Time, todaysBars map[string]marketdata.Bar) {
	for symbol, pos := range e.state.Positions {
		price := pos.EntryPrice
		if bar, ok := todaysBars[symbol]; ok {
			price = bar.Close
		}
		e.closePosition(symbol, price, t, orders.ExitEndOfTest)
	}
}
