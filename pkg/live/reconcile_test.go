package live

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/analysis"
	"github.com/ridgeline-quant/ntengine/pkg/broker"
	"github.com/ridgeline-quant/ntengine/pkg/config"
	"github.com/ridgeline-quant/ntengine/pkg/fetcher"
	"github.com/ridgeline-quant/ntengine/pkg/scanner"
)

// fakeBroker is a minimal BrokerClient test double whose GetPositions
// returns a fixed list and whose SubmitMarketOrder records every request,
// so reconcile's exit-submission behavior can be asserted directly.
type fakeBroker struct {
	positions []broker.Position
	submitted []broker.OrderRequest
}

func (f *fakeBroker) GetAccount(ctx context.Context) (broker.Account, error) { return broker.Account{}, nil }
func (f *fakeBroker) GetPositions(ctx context.Context) ([]broker.Position, error) {
	return f.positions, nil
}
func (f *fakeBroker) GetPosition(ctx context.Context, symbol string) (broker.Position, error) {
	return broker.Position{}, nil
}
func (f *fakeBroker) SubmitMarketOrder(ctx context.Context, req broker.OrderRequest) (broker.Order, error) {
	f.submitted = append(f.submitted, req)
	return broker.Order{Status: broker.StatusFilled}, nil
}
func (f *fakeBroker) GetOrder(ctx context.Context, id string) (broker.Order, error) {
	return broker.Order{}, nil
}
func (f *fakeBroker) GetOrders(ctx context.Context) ([]broker.Order, error) { return nil, nil }
func (f *fakeBroker) CancelOrder(ctx context.Context, id string) error      { return nil }
func (f *fakeBroker) ClosePosition(ctx context.Context, symbol string) error { return nil }
func (f *fakeBroker) IsPaper() bool                                         { return true }
func (f *fakeBroker) BrokerName() string                                    { return "fake" }

func newTestLoop(t *testing.T, br broker.BrokerClient) *Loop {
	t.Helper()
	return New(Params{
		Config:   &config.Config{},
		Fetcher:  fetcher.New("", 1, 60),
		Scanner:  scanner.New(&config.Config{}),
		Analyzer: analysis.New(analysis.DefaultParams()),
		Gate:     testGate(),
		Broker:   br,
		Location: time.UTC,
	})
}

func TestReconcileSubmitsExitOnStopLossBreach(t *testing.T) {
	br := &fakeBroker{positions: []broker.Position{
		{Symbol: "AAPL", Qty: "10", AvgEntryPrice: "100", MarketValue: "970"}, // live price 97, below the 98 stop
	}}
	l := newTestLoop(t, br)
	l.gate.OpenPosition("AAPL", true, decimal.NewFromInt(100), decimal.NewFromInt(98), decimal.NewFromInt(120))

	require.NoError(t, l.reconcile(context.Background()))
	require.Len(t, br.submitted, 1)
	require.Equal(t, broker.Sell, br.submitted[0].Side)
	require.Equal(t, "10", br.submitted[0].Qty)
}

func TestReconcileSubmitsCoverOnShortStopLossBreach(t *testing.T) {
	br := &fakeBroker{positions: []broker.Position{
		{Symbol: "AAPL", Qty: "-10", AvgEntryPrice: "100", MarketValue: "-1060"}, // live price 106, above the 105 stop
	}}
	l := newTestLoop(t, br)
	l.gate.OpenPosition("AAPL", false, decimal.NewFromInt(100), decimal.NewFromInt(105), decimal.NewFromInt(80))

	require.NoError(t, l.reconcile(context.Background()))
	require.Len(t, br.submitted, 1)
	require.Equal(t, broker.Cover, br.submitted[0].Side)
	require.Equal(t, "10", br.submitted[0].Qty)
}

func TestReconcileNoBreachSubmitsNothing(t *testing.T) {
	br := &fakeBroker{positions: []broker.Position{
		{Symbol: "AAPL", Qty: "10", AvgEntryPrice: "100", MarketValue: "1010"}, // live price 101, stop not breached
	}}
	l := newTestLoop(t, br)
	l.gate.OpenPosition("AAPL", true, decimal.NewFromInt(100), decimal.NewFromInt(98), decimal.NewFromInt(120))

	require.NoError(t, l.reconcile(context.Background()))
	require.Empty(t, br.submitted)
}
