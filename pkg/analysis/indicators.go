// Package analysis is the concrete analyze(symbol, bars) -> SignalStrength
// producer behind the specification's opaque analyzer capability. Adapted
// from the teacher's pkg/strategy (VWAP/RSI/ATR indicators, candle pattern
// detection, adaptive entry thresholds) and pkg/ml (in-process logistic
// regression scorer), converted from float64 to decimal-backed inputs
// where the values feed order sizing, and left as float64 where they only
// drive scoring (indicator ratios are dimensionless, not money).
package analysis

import (
	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
)

// VWAP computes the volume-weighted average price over a bar window.
func VWAP(bars marketdata.Series) float64 {
	var pv, vol float64
	for _, b := range bars {
		typical := (b.HighF64() + b.LowF64() + b.CloseF64()) / 3
		pv += typical * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// VWAPExtension expresses how many ATRs the current close sits from VWAP.
func VWAPExtension(close, vwap, atr float64) float64 {
	if atr == 0 {
		return 0
	}
	return (close - vwap) / atr
}

// ATR computes Wilder's smoothed average true range over bars.
func ATR(bars marketdata.Series, period int) float64 {
	if len(bars) < 2 {
		return 0
	}
	trs := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		hi, lo, prevClose := bars[i].HighF64(), bars[i].LowF64(), bars[i-1].CloseF64()
		tr := hi - lo
		if v := absF(hi - prevClose); v > tr {
			tr = v
		}
		if v := absF(lo - prevClose); v > tr {
			tr = v
		}
		trs = append(trs, tr)
	}
	return wilderSmooth(trs, period)
}

// RSI computes Wilder's relative strength index over bars' closes.
func RSI(bars marketdata.Series, period int) float64 {
	if len(bars) < period+1 {
		return 50
	}
	var gains, losses []float64
	for i := 1; i < len(bars); i++ {
		change := bars[i].CloseF64() - bars[i-1].CloseF64()
		if change > 0 {
			gains = append(gains, change)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -change)
		}
	}
	avgGain := wilderSmooth(gains, period)
	avgLoss := wilderSmooth(losses, period)
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func wilderSmooth(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) < period {
		period = len(values)
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	avg := sum / float64(period)
	for i := period; i < len(values); i++ {
		avg = (avg*float64(period-1) + values[i]) / float64(period)
	}
	return avg
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// VolumeMA computes a simple moving average of bar volume.
func VolumeMA(bars marketdata.Series, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	if len(bars) < period {
		period = len(bars)
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		sum += bars[i].Volume
	}
	return sum / float64(period)
}
