// Package risk implements the risk gate: circuit breakers, trade
// admission, position sizing, and the trailing-stop ratchet, all behind a
// single mutex on the parameter/peak record. Generalizes the teacher's
// pkg/risk/{buyingpower,limits,sizing}.go (daily P&L tracking, protect-gains
// profit-target logic, sizing formulas) into the specification's richer
// contract, further grounded on the idiomatic Go shape of a standalone
// risk-gate reference implementation (decimal fields, env-var thresholds,
// mutex-guarded state, circuit-trip callback) and on the original
// RiskParameters/CircuitBreakerCheck field set.
package risk

import "github.com/shopspring/decimal"

// Parameters mirrors the specification's RiskParameters record.
type Parameters struct {
	MaxRiskPerTradePct   decimal.Decimal
	MaxPortfolioRiskPct  decimal.Decimal
	MaxPositionSizePct   decimal.Decimal
	DefaultStopLossPct   decimal.Decimal
	DefaultTakeProfitPct decimal.Decimal
	TrailingStopEnabled  bool
	TrailingStopPct      decimal.Decimal
	MinConfidence        float64
	DailyLossLimitPct    decimal.Decimal
	MaxConsecutiveLosses int
	DrawdownLimitPct     decimal.Decimal
	TradingHalted        bool
	HaltReason           string
}
