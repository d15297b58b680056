package live

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-quant/ntengine/pkg/analysis"
	"github.com/ridgeline-quant/ntengine/pkg/broker"
	"github.com/ridgeline-quant/ntengine/pkg/broker/paper"
	"github.com/ridgeline-quant/ntengine/pkg/config"
	"github.com/ridgeline-quant/ntengine/pkg/fetcher"
	"github.com/ridgeline-quant/ntengine/pkg/risk"
	"github.com/ridgeline-quant/ntengine/pkg/scanner"
)

func testGate() *risk.Gate {
	return risk.NewGate(risk.Parameters{
		MaxRiskPerTradePct:   decimal.NewFromFloat(1),
		MaxPortfolioRiskPct:  decimal.NewFromFloat(50),
		MaxPositionSizePct:   decimal.NewFromFloat(20),
		DefaultStopLossPct:   decimal.NewFromFloat(5),
		DefaultTakeProfitPct: decimal.NewFromFloat(10),
		TrailingStopPct:      decimal.NewFromFloat(5),
		MinConfidence:        0,
		DailyLossLimitPct:    decimal.NewFromFloat(5),
		MaxConsecutiveLosses: 3,
		DrawdownLimitPct:     decimal.NewFromFloat(15),
	})
}

func TestNewLoopDefaultsMLGateAndInterval(t *testing.T) {
	br := paper.New(decimal.NewFromInt(100_000))
	l := New(Params{
		Config:   &config.Config{},
		Fetcher:  fetcher.New("", 1, 60),
		Scanner:  scanner.New(&config.Config{}),
		Analyzer: analysis.New(analysis.DefaultParams()),
		Gate:     testGate(),
		Broker:   br,
		Location: time.UTC,
		Metrics:  NewMetrics(prometheus.NewRegistry()),
	})
	require.NotNil(t, l.mlGate)
	require.Equal(t, time.Minute, l.scanInterval)
}

func TestShutdownClosesAllPositions(t *testing.T) {
	br := paper.New(decimal.NewFromInt(100_000))
	br.PriceFeed = func(symbol string) (decimal.Decimal, bool) { return decimal.NewFromInt(100), true }
	_, err := br.SubmitMarketOrder(context.Background(), broker.OrderRequest{
		Symbol: "AAPL", Side: broker.Buy, Qty: "10", Type: "market",
	})
	require.NoError(t, err)

	l := New(Params{
		Config:   &config.Config{},
		Fetcher:  fetcher.New("", 1, 60),
		Scanner:  scanner.New(&config.Config{}),
		Analyzer: analysis.New(analysis.DefaultParams()),
		Gate:     testGate(),
		Broker:   br,
		Location: time.UTC,
	})

	require.NoError(t, l.closeAllPositions(context.Background()))

	positions, err := br.GetPositions(context.Background())
	require.NoError(t, err)
	require.Empty(t, positions, "closeAllPositions must flatten every open position")
}
