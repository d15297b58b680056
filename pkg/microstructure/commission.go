// Package microstructure implements the fill-cost models shared by the
// backtest engine and the live loop: tiered commission, directional
// slippage, and margin/buying-power tracking. Grounded on the teacher's
// flat-rate CalculateCommission/bar-range slippage (generalized rather than
// replaced outright) and on the original commission/margin models.
package microstructure

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CommissionTier is one threshold/rate pair: the tier applies once
// cumulative monthly share volume reaches Threshold.
type CommissionTier struct {
	Threshold decimal.Decimal
	RatePerShare decimal.Decimal
}

// CommissionModel is a tiered-by-volume commission schedule with a
// per-trade floor and ceiling. MaxPerTrade == 0 means unbounded.
type CommissionModel struct {
	Tiers       []CommissionTier
	MinPerTrade decimal.Decimal
	MaxPerTrade decimal.Decimal
	FlatRate    decimal.Decimal // fallback when Tiers is empty: notional * FlatRate
}

// DefaultCommissionModel mirrors typical retail per-share pricing: a base
// rate that steps down at higher monthly volume, floored at $0.75/trade.
func DefaultCommissionModel() CommissionModel {
	return CommissionModel{
		Tiers: []CommissionTier{
			{Threshold: decimal.Zero, RatePerShare: decimal.NewFromFloat(0.005)},
			{Threshold: decimal.NewFromInt(100_000), RatePerShare: decimal.NewFromFloat(0.0035)},
			{Threshold: decimal.NewFromInt(1_000_000), RatePerShare: decimal.NewFromFloat(0.002)},
		},
		MinPerTrade: decimal.NewFromFloat(0.75),
		MaxPerTrade: decimal.Zero,
	}
}

// Compute selects the highest-threshold tier whose threshold is at most
// cumulativeMonthlyShares, multiplies by shares traded, and clamps the
// result into [MinPerTrade, MaxPerTrade] (MaxPerTrade == 0 means unbounded).
// With no tiers configured, falls back to notional * FlatRate.
func (m CommissionModel) Compute(shares, price, cumulativeMonthlyShares decimal.Decimal) decimal.Decimal {
	if len(m.Tiers) == 0 {
		notional := shares.Abs().Mul(price)
		return clamp(notional.Mul(m.FlatRate), m.MinPerTrade, m.MaxPerTrade)
	}

	tiers := append([]CommissionTier(nil), m.Tiers...)
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold.LessThan(tiers[j].Threshold) })

	rate := tiers[0].RatePerShare
	for _, t := range tiers {
		if t.Threshold.LessThanOrEqual(cumulativeMonthlyShares) {
			rate = t.RatePerShare
		}
	}

	commission := shares.Abs().Mul(rate)
	return clamp(commission, m.MinPerTrade, m.MaxPerTrade)
}

func clamp(v, min, max decimal.Decimal) decimal.Decimal {
	if v.LessThan(min) {
		v = min
	}
	if max.GreaterThan(decimal.Zero) && v.GreaterThan(max) {
		v = max
	}
	return v
}
