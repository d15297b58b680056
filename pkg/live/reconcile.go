package live

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/broker"
)

// reconcile implements phase 6: pull broker positions, ratchet trailing
// stops against live prices, and submit exits for stop-loss/take-profit
// hits via gate.UpdateTrailingStop and gate.CheckStopLosses. The backtest
// engine's evaluateExits uses the same UpdateTrailingStop ratchet per bar.
func (l *Loop) reconcile(ctx context.Context) error {
	positions, err := l.brk.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: listing positions: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}

	bySymbol := make(map[string]broker.Position, len(positions))
	prices := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		qty, err := decimal.NewFromString(p.Qty)
		if err != nil || qty.IsZero() {
			continue
		}
		mv, err := decimal.NewFromString(p.MarketValue)
		if err != nil {
			continue
		}
		price := mv.Abs().Div(qty.Abs())
		bySymbol[p.Symbol] = p
		prices[p.Symbol] = price
		l.gate.UpdateTrailingStop(p.Symbol, price)
	}

	for _, alert := range l.gate.CheckStopLosses(prices) {
		if !alert.ShouldExit {
			continue
		}
		pos, ok := bySymbol[alert.Symbol]
		if !ok {
			continue
		}
		if err := l.submitExit(ctx, pos); err != nil {
			l.log.Error().Err(err).Str("symbol", alert.Symbol).Str("reason", alert.Reason).Msg("reconcile: exit order failed")
			continue
		}
		l.gate.ClosePosition(alert.Symbol)
	}
	return nil
}

// submitExit closes a live position at market: sell for a long qty, cover
// for a short qty.
func (l *Loop) submitExit(ctx context.Context, pos broker.Position) error {
	qty, err := decimal.NewFromString(pos.Qty)
	if err != nil {
		return fmt.Errorf("parsing qty for %s: %w", pos.Symbol, err)
	}

	side := broker.Sell
	if qty.IsNegative() {
		side = broker.Cover
	}

	order, err := l.brk.SubmitMarketOrder(ctx, broker.OrderRequest{
		Symbol: pos.Symbol, Side: side, Qty: qty.Abs().String(), Type: "market",
	})
	if err != nil {
		return fmt.Errorf("submitting exit for %s: %w", pos.Symbol, err)
	}
	if order.Status == broker.StatusFilled {
		l.log.Info().Str("symbol", pos.Symbol).Str("side", exitSideString(side)).Msg("reconcile: stop/TP exit filled")
	}
	return nil
}

func exitSideString(side broker.OrderSide) string {
	if side == broker.Cover {
		return "cover"
	}
	return "sell"
}
