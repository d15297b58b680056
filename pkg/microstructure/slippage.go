package microstructure

import "github.com/shopspring/decimal"

// Direction of a fill, long or short.
type Direction int

const (
	Long Direction = iota
	Short
)

// Side distinguishes an entry fill from an exit fill, since slippage
// direction is adverse relative to whichever side the filler is on.
type Side int

const (
	Entry Side = iota
	Exit
)

// SlippageModel computes a fill price from a raw reference price.
type SlippageModel interface {
	Fill(raw decimal.Decimal, dir Direction, side Side) decimal.Decimal
}

// PercentSlippage applies the specification's exact directional formula:
// long entries fill worse (higher) by pct, long exits worse (lower) by pct;
// shorts invert both. Always adverse to the filler.
type PercentSlippage struct {
	Pct decimal.Decimal // e.g. 0.001 for 10bps
}

func (s PercentSlippage) Fill(raw decimal.Decimal, dir Direction, side Side) decimal.Decimal {
	adverse := isAdverseUp(dir, side)
	factor := decimal.NewFromInt(1)
	if adverse {
		factor = factor.Add(s.Pct)
	} else {
		factor = factor.Sub(s.Pct)
	}
	return raw.Mul(factor)
}

// isAdverseUp reports whether the adverse direction for this dir/side
// combination raises the fill price (true) or lowers it (false).
//
//	long entry  -> fills higher (worse): true
//	long exit   -> fills lower  (worse): false
//	short entry -> fills lower  (worse): false
//	short exit  -> fills higher (worse): true
func isAdverseUp(dir Direction, side Side) bool {
	if dir == Long {
		return side == Entry
	}
	return side == Exit
}

// BarRangeSlippage is the teacher's original model, kept as an alternate:
// it displaces the fill by a fraction of the bar's high-low range instead
// of a fixed percentage of price, clamped inside the bar.
type BarRangeSlippage struct {
	Fraction decimal.Decimal // e.g. 0.3 for 30% of range
	High     decimal.Decimal
	Low      decimal.Decimal
}

func (s BarRangeSlippage) Fill(raw decimal.Decimal, dir Direction, side Side) decimal.Decimal {
	rng := s.High.Sub(s.Low)
	disp := rng.Mul(s.Fraction)
	out := raw
	if isAdverseUp(dir, side) {
		out = raw.Add(disp)
	} else {
		out = raw.Sub(disp)
	}
	if out.GreaterThan(s.High) {
		out = s.High
	}
	if out.LessThan(s.Low) {
		out = s.Low
	}
	return out
}
