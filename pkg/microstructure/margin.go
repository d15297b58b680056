package microstructure

import "github.com/shopspring/decimal"

// MarginAccount tracks buying power under a margin multiplier and the peak
// notional utilization observed over the account's lifetime. Generalizes
// the teacher's BuyingPowerManager (regular/pre-market split, 50% short
// margin) into a single multiplier-based model per the specification.
type MarginAccount struct {
	Multiplier decimal.Decimal // >= 1.0; scales buying power
	peakUtil   float64
}

func NewMarginAccount(multiplier decimal.Decimal) *MarginAccount {
	if multiplier.LessThan(decimal.NewFromInt(1)) {
		multiplier = decimal.NewFromInt(1)
	}
	return &MarginAccount{Multiplier: multiplier}
}

// BuyingPower returns the notional an account may deploy given cash equity.
func (m *MarginAccount) BuyingPower(equity decimal.Decimal) decimal.Decimal {
	return equity.Mul(m.Multiplier)
}

// RecordUtilization observes positionsNotional/equity at a point in time
// and updates the monotonic peak.
func (m *MarginAccount) RecordUtilization(positionsNotional, equity decimal.Decimal) {
	if equity.LessThanOrEqual(decimal.Zero) {
		return
	}
	util, _ := positionsNotional.Div(equity).Float64()
	if util > m.peakUtil {
		m.peakUtil = util
	}
}

// PeakUtilization returns the maximum observed positions_notional/equity.
func (m *MarginAccount) PeakUtilization() float64 { return m.peakUtil }
