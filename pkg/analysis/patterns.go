package analysis

import "github.com/ridgeline-quant/ntengine/pkg/marketdata"

// Pattern is a recognized single- or two-bar candle formation.
type Pattern int

const (
	PatternNone Pattern = iota
	PatternBullishEngulfing
	PatternBearishEngulfing
	PatternHammer
	PatternShootingStar
	PatternDoji
)

func (p Pattern) String() string {
	switch p {
	case PatternBullishEngulfing:
		return "bullish_engulfing"
	case PatternBearishEngulfing:
		return "bearish_engulfing"
	case PatternHammer:
		return "hammer"
	case PatternShootingStar:
		return "shooting_star"
	case PatternDoji:
		return "doji"
	default:
		return "none"
	}
}

// DetectPattern inspects the last one or two bars of the series. Bullish
// patterns nudge entry confidence up; bearish patterns suppress it.
func DetectPattern(bars marketdata.Series) Pattern {
	n := len(bars)
	if n == 0 {
		return PatternNone
	}
	last := bars[n-1]
	body := absF(last.CloseF64() - last.OpenF64())
	rng := last.HighF64() - last.LowF64()
	if rng == 0 {
		return PatternNone
	}
	upperWick := last.HighF64() - maxF(last.OpenF64(), last.CloseF64())
	lowerWick := minF(last.OpenF64(), last.CloseF64()) - last.LowF64()

	if body/rng < 0.1 {
		return PatternDoji
	}
	if lowerWick > body*2 && upperWick < body*0.5 {
		return PatternHammer
	}
	if upperWick > body*2 && lowerWick < body*0.5 {
		return PatternShootingStar
	}

	if n < 2 {
		return PatternNone
	}
	prev := bars[n-2]
	prevBearish := prev.CloseF64() < prev.OpenF64()
	prevBullish := prev.CloseF64() > prev.OpenF64()
	curBullish := last.CloseF64() > last.OpenF64()
	curBearish := last.CloseF64() < last.OpenF64()

	if prevBearish && curBullish && last.OpenF64() <= prev.CloseF64() && last.CloseF64() >= prev.OpenF64() {
		return PatternBullishEngulfing
	}
	if prevBullish && curBearish && last.OpenF64() >= prev.CloseF64() && last.CloseF64() <= prev.OpenF64() {
		return PatternBearishEngulfing
	}
	return PatternNone
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
