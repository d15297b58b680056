// Package stats computes performance statistics and factor attribution over
// a backtest's equity curve and trade returns. Entirely new relative to the
// teacher; grounded on the original factor-attribution model translated
// into idiomatic Go (closed-form OLS, not a numerical solver).
package stats

import "math"

const tradingDaysPerYear = 252

// DailyReturns converts an equity curve into simple daily returns.
func DailyReturns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (equity[i]-equity[i-1])/equity[i-1])
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, m float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)-1))
}

// Sharpe annualizes mean/stddev of daily returns by sqrt(252).
func Sharpe(returns []float64) float64 {
	m := mean(returns)
	s := stddev(returns, m)
	if s == 0 {
		return 0
	}
	return (m / s) * math.Sqrt(tradingDaysPerYear)
}

// Sortino uses downside deviation (only negative returns) in place of
// total standard deviation.
func Sortino(returns []float64) float64 {
	m := mean(returns)
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	dd := stddev(downside, 0)
	if dd == 0 {
		return 0
	}
	return (m / dd) * math.Sqrt(tradingDaysPerYear)
}

// DrawdownStat records one drawdown episode's depth and duration in bars.
type DrawdownStat struct {
	MaxDepthPct float64
	DurationBars int
}

// MaxDrawdown walks the equity curve's running peak and reports the worst
// depth and its duration (bars from peak to trough).
func MaxDrawdown(equity []float64) DrawdownStat {
	if len(equity) == 0 {
		return DrawdownStat{}
	}
	peak := equity[0]
	peakIdx := 0
	worst := DrawdownStat{}
	for i, e := range equity {
		if e > peak {
			peak = e
			peakIdx = i
		}
		if peak == 0 {
			continue
		}
		depth := (peak - e) / peak * 100
		if depth > worst.MaxDepthPct {
			worst.MaxDepthPct = depth
			worst.DurationBars = i - peakIdx
		}
	}
	return worst
}

// Attribution is the result of a CAPM regression of strategy returns on a
// benchmark's returns.
type Attribution struct {
	Alpha          float64 // annualized
	Beta           float64
	RSquared       float64
	TrackingError  float64 // annualized stddev of residuals
	ResidualRisk   float64 // annualized stddev of residuals (alias, kept distinct per spec naming)
	Defined        bool
}

// CAPM regresses strategy returns on benchmark returns via the closed-form
// OLS: beta = cov/var, alpha = mean_r - beta*mean_b. Requires at least 10
// paired observations; otherwise returns Defined=false.
func CAPM(strategyReturns, benchmarkReturns []float64) Attribution {
	n := len(strategyReturns)
	if n != len(benchmarkReturns) || n < 10 {
		return Attribution{}
	}

	meanR := mean(strategyReturns)
	meanB := mean(benchmarkReturns)

	var cov, varB float64
	for i := 0; i < n; i++ {
		dr := strategyReturns[i] - meanR
		db := benchmarkReturns[i] - meanB
		cov += dr * db
		varB += db * db
	}
	cov /= float64(n - 1)
	varB /= float64(n - 1)

	if varB == 0 {
		return Attribution{}
	}

	beta := cov / varB
	alpha := meanR - beta*meanB

	var ssTot, ssRes float64
	residuals := make([]float64, n)
	for i := 0; i < n; i++ {
		predicted := alpha + beta*benchmarkReturns[i]
		resid := strategyReturns[i] - predicted
		residuals[i] = resid
		ssRes += resid * resid
		d := strategyReturns[i] - meanR
		ssTot += d * d
	}

	rSquared := 0.0
	if ssTot != 0 {
		rSquared = 1 - ssRes/ssTot
	}

	residMean := mean(residuals)
	residStd := stddev(residuals, residMean) * math.Sqrt(tradingDaysPerYear)

	return Attribution{
		Alpha:         alpha * tradingDaysPerYear,
		Beta:          beta,
		RSquared:      rSquared,
		TrackingError: residStd,
		ResidualRisk:  residStd,
		Defined:       true,
	}
}
