// Package orders implements the fill semantics for every order primitive the
// backtest engine and live loop share: market, limit-with-expiry, trailing
// stop, and stop-loss/take-profit with gap-through. Grounded on the
// original order-type/trailing-stop/short-selling models, translated into
// idiomatic Go, and on the teacher's previously-disabled trailing-stop
// block in its exit checker (re-enabled and generalized here).
package orders

import "github.com/shopspring/decimal"

// Direction of a position: long (positive shares) or short (negative).
type Direction int

const (
	Long Direction = iota
	Short
)

// Signal is an immutable trade instruction once created.
type SignalType int

const (
	Buy SignalType = iota
	Sell
)

type OrderType int

const (
	Market OrderType = iota
	Limit
)

type Signal struct {
	Symbol           string
	Type             SignalType
	Confidence       float64
	Price            decimal.Decimal
	Reason           string
	OrderType        OrderType
	LimitPrice       decimal.Decimal
	LimitExpiryBars  int
}

// PendingLimitOrder is a limit signal awaiting trigger or expiry.
type PendingLimitOrder struct {
	Signal        Signal
	BarsRemaining int
	Direction     SignalType // buy or sell
}

// TryFillLimit checks a pending limit order against one bar's low/high and
// returns the fill price and whether it triggered. A buy limit triggers
// when bar low <= limit price; a sell limit when bar high >= limit price.
// Fills occur exactly at the limit price (never better, never worse).
func TryFillLimit(p *PendingLimitOrder, barLow, barHigh decimal.Decimal) (fillPrice decimal.Decimal, filled bool) {
	limit := p.Signal.LimitPrice
	if p.Direction == Buy && barLow.LessThanOrEqual(limit) {
		return limit, true
	}
	if p.Direction == Sell && barHigh.GreaterThanOrEqual(limit) {
		return limit, true
	}
	return decimal.Zero, false
}

// DecrementOrExpire decrements bars_remaining; returns true once the order
// has expired (caller must drop it from the pending list).
func DecrementOrExpire(p *PendingLimitOrder) bool {
	p.BarsRemaining--
	return p.BarsRemaining <= 0
}

// InitialTrailingStop computes the starting trailing-stop level for a new
// position: entry*(1-pct) for longs, entry*(1+pct) for shorts.
func InitialTrailingStop(entry decimal.Decimal, pct decimal.Decimal, dir Direction) decimal.Decimal {
	if dir == Long {
		return entry.Mul(decimal.NewFromInt(1).Sub(pct))
	}
	return entry.Mul(decimal.NewFromInt(1).Add(pct))
}

// RatchetTrailingStop computes a candidate trailing-stop level from the
// current bar's high (long) or low (short) and adopts it only if it
// improves on the existing stop (ratchet: never loosens).
func RatchetTrailingStop(current decimal.Decimal, barHigh, barLow decimal.Decimal, pct decimal.Decimal, dir Direction) decimal.Decimal {
	if dir == Long {
		candidate := barHigh.Mul(decimal.NewFromInt(1).Sub(pct))
		if candidate.GreaterThan(current) {
			return candidate
		}
		return current
	}
	candidate := barLow.Mul(decimal.NewFromInt(1).Add(pct))
	if candidate.LessThan(current) {
		return candidate
	}
	return current
}

// ExitReason enumerates why a position was closed.
type ExitReason int

const (
	ExitSignal ExitReason = iota
	ExitStopLoss
	ExitTakeProfit
	ExitTrailingStop
	ExitExpiry
	ExitEndOfTest
)

// CheckStopTakeProfit evaluates a long or short position's stop-loss and
// take-profit against one bar, applying gap-through semantics: if the bar
// opens past the level, fill at the open (worse/better accordingly);
// otherwise fill exactly at the level. Returns ok=false if neither
// triggered.
func CheckStopTakeProfit(dir Direction, open, high, low, stopLoss, takeProfit decimal.Decimal, hasStop, hasTP bool) (fillPrice decimal.Decimal, reason ExitReason, ok bool) {
	if dir == Long {
		if hasStop && open.LessThanOrEqual(stopLoss) {
			return open, ExitStopLoss, true
		}
		if hasStop && low.LessThanOrEqual(stopLoss) {
			return stopLoss, ExitStopLoss, true
		}
		if hasTP && open.GreaterThanOrEqual(takeProfit) {
			return open, ExitTakeProfit, true
		}
		if hasTP && high.GreaterThanOrEqual(takeProfit) {
			return takeProfit, ExitTakeProfit, true
		}
		return decimal.Zero, 0, false
	}

	// Short: inverted trigger conditions and inverted gap-through direction.
	if hasStop && open.GreaterThanOrEqual(stopLoss) {
		return open, ExitStopLoss, true
	}
	if hasStop && high.GreaterThanOrEqual(stopLoss) {
		return stopLoss, ExitStopLoss, true
	}
	if hasTP && open.LessThanOrEqual(takeProfit) {
		return open, ExitTakeProfit, true
	}
	if hasTP && low.LessThanOrEqual(takeProfit) {
		return takeProfit, ExitTakeProfit, true
	}
	return decimal.Zero, 0, false
}

// PnL computes gross profit-and-loss for a closed position. Long uses
// (exit-entry)*shares; short inverts to (entry-exit)*shares.
func PnL(dir Direction, entry, exit, shares decimal.Decimal) decimal.Decimal {
	if dir == Long {
		return exit.Sub(entry).Mul(shares)
	}
	return entry.Sub(exit).Mul(shares)
}

// MarkToMarket values an open position at the current price. Longs value at
// shares*price. Shorts use (2*entry - current)*shares, which assumes the
// cash proceeds of the short sale are held alongside the liability (see
// DESIGN.md open-question resolutions) rather than netting the liability against zero
// held cash.
func MarkToMarket(dir Direction, entry, current, shares decimal.Decimal) decimal.Decimal {
	if dir == Long {
		return shares.Mul(current)
	}
	two := decimal.NewFromInt(2)
	return two.Mul(entry).Sub(current).Mul(shares)
}
