package analysis

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/analysis/mlmodel"
	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
)

// Params tunes the adaptive entry/exit thresholds. Mirrors the teacher's
// strategy.Params, generalized to be symbol-agnostic and regime-aware at the
// call site (pkg/risk applies the regime multiplier downstream).
type Params struct {
	RSIPeriod       int
	ATRPeriod       int
	VolumeMAPeriod  int
	RSIOversold     float64
	RSIOverbought   float64
	MinConfidence   float64
	StopLossATRMult decimal.Decimal
	TakeProfitMult  decimal.Decimal
	TrailingPct     decimal.Decimal
}

func DefaultParams() Params {
	return Params{
		RSIPeriod:       14,
		ATRPeriod:       14,
		VolumeMAPeriod:  20,
		RSIOversold:     30,
		RSIOverbought:   70,
		MinConfidence:   0.55,
		StopLossATRMult: decimal.NewFromFloat(2.0),
		TakeProfitMult:  decimal.NewFromFloat(3.0),
		TrailingPct:     decimal.NewFromFloat(0.05),
	}
}

// Analyzer is the concrete analyze(symbol, bars) -> SignalStrength producer:
// composes VWAP/RSI/ATR/pattern indicators into a feature vector, scores it
// with an mlmodel.Model, and emits a buy Signal when confidence clears
// params.MinConfidence. It implements backtest.SignalSource.
type Analyzer struct {
	Params Params
	Model  *mlmodel.Model
}

func New(params Params) *Analyzer {
	return &Analyzer{Params: params, Model: mlmodel.Default()}
}

// Features computes the indicator feature vector the ml model scores.
func (a *Analyzer) Features(bars marketdata.Series) map[string]float64 {
	if len(bars) == 0 {
		return map[string]float64{}
	}
	last := bars[len(bars)-1]
	rsi := RSI(bars, a.Params.RSIPeriod)
	atr := ATR(bars, a.Params.ATRPeriod)
	vwap := VWAP(bars)
	volMA := VolumeMA(bars, a.Params.VolumeMAPeriod)

	volumeRatio := 1.0
	if volMA > 0 {
		volumeRatio = last.Volume / volMA
	}
	atrPct := 0.0
	if last.CloseF64() != 0 {
		atrPct = atr / last.CloseF64()
	}

	pattern := DetectPattern(bars)
	bull, bear := 0.0, 0.0
	switch pattern {
	case PatternBullishEngulfing, PatternHammer:
		bull = 1
	case PatternBearishEngulfing, PatternShootingStar:
		bear = 1
	}

	return map[string]float64{
		"rsi_centered": (rsi - 50) / 50,
		"vwap_ext":     VWAPExtension(last.CloseF64(), vwap, atr),
		"volume_ratio": volumeRatio,
		"atr_pct":      atrPct,
		"pattern_bull": bull,
		"pattern_bear": bear,
	}
}

// SignalsFor satisfies backtest.SignalSource: given bars up to and including
// t (never beyond — the caller, pkg/backtest.upTo, already enforces this),
// produce zero or one buy signal.
func (a *Analyzer) SignalsFor(symbol string, t time.Time, barsUpTo marketdata.Series) []orders.Signal {
	if len(barsUpTo) < a.Params.RSIPeriod+1 {
		return nil
	}
	features := a.Features(barsUpTo)
	prob := a.Model.Predict(features)
	if prob < a.Params.MinConfidence {
		return nil
	}

	rsi := RSI(barsUpTo, a.Params.RSIPeriod)
	if rsi > a.Params.RSIOverbought {
		return nil
	}

	last := barsUpTo[len(barsUpTo)-1]

	return []orders.Signal{{
		Symbol:     symbol,
		Type:       orders.Buy,
		Confidence: prob,
		Price:      last.Close,
		Reason:     DetectPattern(barsUpTo).String(),
		OrderType:  orders.Market,
	}}
}

// StopLossFor computes the ATR-multiple stop distance below entry.
func (a *Analyzer) StopLossFor(entry decimal.Decimal, bars marketdata.Series) decimal.Decimal {
	atr := decimal.NewFromFloat(ATR(bars, a.Params.ATRPeriod))
	return entry.Sub(atr.Mul(a.Params.StopLossATRMult))
}

// TakeProfitFor computes the ATR-multiple target above entry.
func (a *Analyzer) TakeProfitFor(entry decimal.Decimal, bars marketdata.Series) decimal.Decimal {
	atr := decimal.NewFromFloat(ATR(bars, a.Params.ATRPeriod))
	return entry.Add(atr.Mul(a.Params.TakeProfitMult))
}
