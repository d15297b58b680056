package live

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/broker"
	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/mlgate"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
	"github.com/ridgeline-quant/ntengine/pkg/regime"
)

// processSymbol runs one symbol through scan -> analyze -> signal -> risk
// gate -> ml gate -> execute, updating the funnel report at every stage it
// clears.
func (l *Loop) processSymbol(ctx context.Context, symbol string, now time.Time) error {
	l.funnel.RecordScanned()
	if l.metrics != nil {
		l.metrics.SymbolsScanned.Inc()
	}

	bars, err := l.fetch.FetchDailyBars(ctx, symbol, now.AddDate(0, 0, -historyLookbackDays), now)
	if err != nil {
		return fmt.Errorf("fetching bars for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil
	}
	last := bars[len(bars)-1]
	if !l.scan.Admit(symbol, last.Close, last.Volume) {
		return nil
	}
	l.funnel.RecordAdmitted()
	l.funnel.RecordAnalyzed()

	signals := l.analyzer.SignalsFor(symbol, now, bars)
	if len(signals) == 0 {
		return nil
	}
	sig := signals[0]
	l.funnel.RecordSignalFound()
	if l.metrics != nil {
		l.metrics.SignalsGenerated.Inc()
	}

	return l.evaluateAndExecute(ctx, sig, bars)
}

func dailyReturns(bars marketdata.Series) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].CloseF64()
		if prev == 0 {
			continue
		}
		out = append(out, (bars[i].CloseF64()-prev)/prev)
	}
	return out
}

func (l *Loop) evaluateAndExecute(ctx context.Context, sig orders.Signal, bars marketdata.Series) error {
	account, err := l.brk.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("fetching account: %w", err)
	}
	portfolioValue, err := decimal.NewFromString(account.Equity)
	if err != nil || portfolioValue.LessThanOrEqual(decimal.Zero) {
		l.funnel.RecordRejected("invalid_portfolio_value")
		return nil
	}

	positions, err := l.brk.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("fetching positions: %w", err)
	}
	currentExposure := decimal.Zero
	for _, p := range positions {
		mv, _ := decimal.NewFromString(p.MarketValue)
		currentExposure = currentExposure.Add(mv.Abs())
	}

	cbResult := l.gate.CheckCircuitBreakers(portfolioValue, decimal.Zero)
	if !cbResult.CanTrade {
		l.funnel.RecordRejected("circuit_breaker")
		if l.metrics != nil {
			l.metrics.OrdersRejected.Inc()
		}
		return nil
	}

	r, _ := regime.Classify(dailyReturns(bars), regime.DefaultThresholds())
	shares := l.gate.SizePosition(sig.Confidence, sig.Price, portfolioValue, r)
	if shares.LessThanOrEqual(decimal.Zero) {
		l.funnel.RecordRejected("zero_sized_position")
		return nil
	}
	notional := shares.Mul(sig.Price)

	riskResult := l.gate.CheckTradeRisk(sig.Confidence, portfolioValue, currentExposure, notional)
	if !riskResult.CanTrade {
		l.funnel.RecordRejected(riskResult.Reason)
		if l.metrics != nil {
			l.metrics.OrdersRejected.Inc()
		}
		return nil
	}
	l.funnel.RecordRiskApproved()

	features := l.analyzer.Features(bars)
	score := mlgate.ScoreWithTimeoutFallback(ctx, l.mlGate, features)
	if score.Recommendation != mlgate.RecommendApprove {
		l.funnel.RecordRejected("ml_gate_reject")
		if l.metrics != nil {
			l.metrics.OrdersRejected.Inc()
		}
		return nil
	}
	l.funnel.RecordMLApproved()

	order, err := l.brk.SubmitMarketOrder(ctx, broker.OrderRequest{
		Symbol: sig.Symbol, Side: broker.Buy, Qty: shares.String(), Type: "market",
	})
	if err != nil {
		return fmt.Errorf("submitting order for %s: %w", sig.Symbol, err)
	}
	l.funnel.RecordSubmitted()
	if l.metrics != nil {
		l.metrics.OrdersSubmitted.Inc()
	}
	if order.Status == broker.StatusFilled {
		l.funnel.RecordFilled()
		stopLoss := l.analyzer.StopLossFor(sig.Price, bars)
		takeProfit := l.analyzer.TakeProfitFor(sig.Price, bars)
		l.gate.OpenPosition(sig.Symbol, true, sig.Price, stopLoss, takeProfit)
	}
	return nil
}
