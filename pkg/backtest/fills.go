package backtest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/microstructure"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
	"github.com/ridgeline-quant/ntengine/pkg/risk"
)

// executeFill handles a triggered pending limit order: buy opens a
// position, sell closes one.
func (e *Engine) executeFill(symbol string, dir orders.SignalType, fillPrice decimal.Decimal, bar marketdata.Bar) {
	if dir == orders.Buy {
		shares := e.targetShares(fillPrice)
		e.openPositionAt(symbol, shares, fillPrice, bar.Date)
		return
	}
	if _, ok := e.state.Positions[symbol]; ok {
		e.closePosition(symbol, fillPrice, bar.Date, orders.ExitSignal)
	}
}

func (e *Engine) targetShares(price decimal.Decimal) decimal.Decimal {
	portfolioValue := e.state.Cash
	notional := portfolioValue.Mul(e.cfg.PositionSizePct).Div(decimal.NewFromInt(100))
	if price.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	shares := notional.Div(price)
	if !e.cfg.AllowFractionalShares {
		shares = shares.Truncate(0)
	}
	return shares
}

// openPosition fills at the next bar's open with slippage and commission,
// as market orders never look ahead.
func (e *Engine) openPosition(symbol string, shares decimal.Decimal, bar marketdata.Bar) {
	fillPrice := bar.Open
	if e.cfg.Slippage != nil {
		fillPrice = e.cfg.Slippage.Fill(bar.Open, microstructure.Long, microstructure.Entry)
	}
	e.openPositionAt(symbol, shares, fillPrice, bar.Date)
}

// openShortPosition mirrors openPosition for the short side: fillPrice
// applies short-side slippage and openPositionAt receives negative shares.
func (e *Engine) openShortPosition(symbol string, shares decimal.Decimal, bar marketdata.Bar) {
	fillPrice := bar.Open
	if e.cfg.Slippage != nil {
		fillPrice = e.cfg.Slippage.Fill(bar.Open, microstructure.Short, microstructure.Entry)
	}
	e.openPositionAt(symbol, shares.Neg(), fillPrice, bar.Date)
}

func (e *Engine) openOrAddPosition(symbol string, shares decimal.Decimal, bar marketdata.Bar) {
	if _, exists := e.state.Positions[symbol]; exists {
		return // incremental rebalancing into an existing position is a future extension
	}
	e.openPosition(symbol, shares, bar)
}

// openPositionAt opens a position of either direction: positive shares is
// long, negative is short (short-sale proceeds are credited to cash, per
// orders.MarkToMarket's held-proceeds-plus-liability convention).
func (e *Engine) openPositionAt(symbol string, shares decimal.Decimal, fillPrice decimal.Decimal, date time.Time) {
	if shares.IsZero() {
		return
	}
	dir := orders.Long
	if shares.IsNegative() {
		dir = orders.Short
	}
	absShares := shares.Abs()

	commission := e.cfg.CommissionModel.Compute(absShares, fillPrice, e.state.CumulativeMonthlyShares)
	notional := absShares.Mul(fillPrice)
	if dir == orders.Long {
		e.state.Cash = e.state.Cash.Sub(notional).Sub(commission)
	} else {
		e.state.Cash = e.state.Cash.Add(notional).Sub(commission)
	}
	e.state.CumulativeMonthlyShares = e.state.CumulativeMonthlyShares.Add(absShares)

	params := e.gate.Params()
	stopPct := params.DefaultStopLossPct.Div(decimal.NewFromInt(100))
	tpPct := params.DefaultTakeProfitPct.Div(decimal.NewFromInt(100))
	var stopLoss, takeProfit decimal.Decimal
	if dir == orders.Long {
		stopLoss = fillPrice.Mul(decimal.NewFromInt(1).Sub(stopPct))
		takeProfit = fillPrice.Mul(decimal.NewFromInt(1).Add(tpPct))
	} else {
		stopLoss = fillPrice.Mul(decimal.NewFromInt(1).Add(stopPct))
		takeProfit = fillPrice.Mul(decimal.NewFromInt(1).Sub(tpPct))
	}

	pos := &Position{
		Symbol:          symbol,
		Shares:          shares,
		EntryPrice:      fillPrice,
		EntryDate:       date,
		StopLoss:        stopLoss,
		HasStopLoss:     true,
		TakeProfit:      takeProfit,
		HasTakeProfit:   true,
		TrailingEnabled: params.TrailingStopEnabled,
		TrailingPct:     params.TrailingStopPct,
		MaxFavorablePrice: fillPrice,
	}
	e.state.Positions[symbol] = pos
	e.gate.OpenPosition(symbol, dir == orders.Long, fillPrice, stopLoss, takeProfit)
}

// closePosition realizes P&L, charges commission, and records the Trade.
func (e *Engine) closePosition(symbol string, rawExitPrice decimal.Decimal, date time.Time, reason orders.ExitReason) {
	pos, ok := e.state.Positions[symbol]
	if !ok {
		return
	}

	exitPrice := rawExitPrice
	if e.cfg.Slippage != nil {
		exitPrice = e.cfg.Slippage.Fill(rawExitPrice, pos.Direction(), microstructure.Exit)
	}

	shares := pos.Shares.Abs()
	commission := e.cfg.CommissionModel.Compute(shares, exitPrice, e.state.CumulativeMonthlyShares)
	grossPnL := orders.PnL(pos.Direction(), pos.EntryPrice, exitPrice, shares)
	netPnL := grossPnL.Sub(commission)

	// Longs sell to close (cash receives proceeds); shorts buy to cover
	// (cash pays the buyback notional against the proceeds credited at
	// entry).
	notional := shares.Mul(exitPrice)
	if pos.Direction() == orders.Long {
		e.state.Cash = e.state.Cash.Add(notional).Sub(commission)
	} else {
		e.state.Cash = e.state.Cash.Sub(notional).Sub(commission)
	}
	e.state.CumulativeMonthlyShares = e.state.CumulativeMonthlyShares.Add(shares)
	e.state.RealizedPnL = e.state.RealizedPnL.Add(netPnL)

	returnPct := 0.0
	if !pos.EntryPrice.IsZero() {
		returnPct, _ = netPnL.Div(pos.EntryPrice.Mul(shares)).Mul(decimal.NewFromInt(100)).Float64()
	}

	e.state.Trades = append(e.state.Trades, Trade{
		EntryDate:  pos.EntryDate,
		ExitDate:   date,
		Symbol:     symbol,
		Direction:  pos.Direction(),
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exitPrice,
		Shares:     shares,
		GrossPnL:   grossPnL,
		Commission: commission,
		NetPnL:     netPnL,
		ReturnPct:  returnPct,
		ExitReason: reason,
	})

	delete(e.state.Positions, symbol)
	e.gate.ClosePosition(symbol)
	e.gate.RecordTrade(risk.TradeOutcome{Symbol: symbol, PnL: netPnL})
}
