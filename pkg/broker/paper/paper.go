// Package paper is a simulated BrokerClient used by `ntengine live
// --broker=paper` and local development: it fills market orders immediately at a caller-supplied
// price and keeps an in-memory ledger, so callers exercising pkg/live don't
// need a live brokerage account.
package paper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/broker"
)

type Broker struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	positions map[string]broker.Position
	orders    map[string]broker.Order
	// PriceFeed supplies the current reference price used to fill market
	// orders; the backtest engine does not use this broker.
	PriceFeed func(symbol string) (decimal.Decimal, bool)
}

func New(initialCash decimal.Decimal) *Broker {
	return &Broker{
		cash:      initialCash,
		positions: make(map[string]broker.Position),
		orders:    make(map[string]broker.Order),
	}
}

func (b *Broker) GetAccount(ctx context.Context) (broker.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	equity := b.cash
	for _, p := range b.positions {
		mv, _ := decimal.NewFromString(p.MarketValue)
		equity = equity.Add(mv)
	}
	return broker.Account{Cash: b.cash.String(), BuyingPower: b.cash.String(), Equity: equity.String()}, nil
}

func (b *Broker) GetPositions(ctx context.Context) ([]broker.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out, nil
}

func (b *Broker) GetPosition(ctx context.Context, symbol string) (broker.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.positions[symbol]
	if !ok {
		return broker.Position{}, fmt.Errorf("no position for %s", symbol)
	}
	return p, nil
}

func (b *Broker) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	price := decimal.Zero
	if b.PriceFeed != nil {
		if p, ok := b.PriceFeed(req.Symbol); ok {
			price = p
		}
	}
	qty, _ := decimal.NewFromString(req.Qty)

	order := broker.Order{
		ID: uuid.NewString(), Symbol: req.Symbol, Side: req.Side,
		Qty: req.Qty, FilledQty: req.Qty, FilledAvgPrice: price.String(),
		Status: broker.StatusFilled, SubmittedAt: time.Now(),
	}
	b.orders[order.ID] = order

	signed := qty
	if req.Side == broker.Sell || req.Side == broker.Short {
		signed = qty.Neg()
	}
	notional := qty.Mul(price)
	if req.Side == broker.Buy || req.Side == broker.Short {
		b.cash = b.cash.Sub(notional)
	} else {
		b.cash = b.cash.Add(notional)
	}

	existing := b.positions[req.Symbol]
	existingQty, _ := decimal.NewFromString(existing.Qty)
	newQty := existingQty.Add(signed)
	b.positions[req.Symbol] = broker.Position{
		Symbol: req.Symbol, Qty: newQty.String(),
		AvgEntryPrice: price.String(), MarketValue: newQty.Mul(price).String(),
	}
	if newQty.IsZero() {
		delete(b.positions, req.Symbol)
	}

	return order, nil
}

func (b *Broker) GetOrder(ctx context.Context, id string) (broker.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return broker.Order{}, fmt.Errorf("order %s not found", id)
	}
	return o, nil
}

func (b *Broker) GetOrders(ctx context.Context) ([]broker.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	return out, nil
}

func (b *Broker) CancelOrder(ctx context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("order %s not found", id)
	}
	o.Status = broker.StatusCanceled
	b.orders[id] = o
	return nil
}

func (b *Broker) ClosePosition(ctx context.Context, symbol string) error {
	b.mu.Lock()
	pos, ok := b.positions[symbol]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	qty, _ := decimal.NewFromString(pos.Qty)
	side := broker.Sell
	if qty.IsNegative() {
		side = broker.Cover
		qty = qty.Neg()
	}
	_, err := b.SubmitMarketOrder(ctx, broker.OrderRequest{Symbol: symbol, Side: side, Qty: qty.String(), Type: "market"})
	return err
}

func (b *Broker) IsPaper() bool      { return true }
func (b *Broker) BrokerName() string { return "paper" }
