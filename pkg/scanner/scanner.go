// Package scanner selects which symbols and signals the live loop and
// backtest actually act on: a ticker universe filtered by price/volume/
// blacklist, a composite signal score for ranking, and market-session
// helpers. Generalizes the teacher's pkg/scanner/{scanner,correlation}.go
// from float64 prices and its strategy.EntrySignal type to decimal prices
// and orders.Signal.
package scanner

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ridgeline-quant/ntengine/pkg/analysis"
	"github.com/ridgeline-quant/ntengine/pkg/config"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
)

// Scanner filters and ranks candidate symbols before they reach analysis.
type Scanner struct {
	tickers   []string
	blacklist map[string]bool
	minPrice  decimal.Decimal
	maxPrice  decimal.Decimal
	minVolume float64
}

func New(cfg *config.Config) *Scanner {
	blacklist := make(map[string]bool, len(cfg.Blacklist))
	for _, t := range cfg.Blacklist {
		blacklist[strings.ToUpper(t)] = true
	}
	tickers := cfg.BacktestTickers
	if len(tickers) == 0 {
		tickers = []string{
			"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA",
			"TSLA", "META", "AMD", "INTC", "SPY",
			"QQQ", "IWM", "NFLX", "DIS",
		}
	}
	return &Scanner{
		tickers:   tickers,
		blacklist: blacklist,
		minPrice:  decimal.NewFromInt(5),
		maxPrice:  decimal.NewFromInt(500),
		minVolume: 100_000,
	}
}

func (s *Scanner) Tickers() []string { return s.tickers }

func (s *Scanner) IsBlacklisted(ticker string) bool {
	return s.blacklist[strings.ToUpper(ticker)]
}

// Admit reports whether a ticker clears the universe filter: not
// blacklisted, priced within [minPrice, maxPrice], and liquid enough.
func (s *Scanner) Admit(ticker string, price decimal.Decimal, volume float64) bool {
	if s.IsBlacklisted(ticker) {
		return false
	}
	if price.LessThan(s.minPrice) || price.GreaterThan(s.maxPrice) {
		return false
	}
	if volume > 0 && volume < s.minVolume {
		return false
	}
	return true
}

// ScoredSignal pairs a signal with its composite ranking score (0-100).
type ScoredSignal struct {
	Signal orders.Signal
	Score  float64
}

// Score composes confidence, VWAP extension, RSI distance-from-midline, and
// pattern quality into a single 0-100 rank, weighted as the teacher tuned it
// after down-weighting its unreliable ML contribution.
func Score(sig orders.Signal, features map[string]float64, pattern analysis.Pattern) float64 {
	score := sig.Confidence * 25.0

	ext := features["vwap_ext"]
	if ext < 0 {
		ext = -ext
	}
	if ext > 3.0 {
		ext = 3.0
	}
	score += (ext / 3.0) * 30.0

	rsiCentered := features["rsi_centered"] // (-1..1), negative = oversold
	rsiScore := -rsiCentered
	if rsiScore < 0 {
		rsiScore = 0
	}
	if rsiScore > 1 {
		rsiScore = 1
	}
	score += rsiScore * 20.0

	score += sig.Confidence * 10.0

	switch pattern {
	case analysis.PatternBullishEngulfing, analysis.PatternBearishEngulfing:
		score += 5.0
	case analysis.PatternHammer, analysis.PatternShootingStar:
		score += 3.0
	}

	if score > 100.0 {
		score = 100.0
	}
	return score
}

// RankSignals sorts candidate signals highest-score-first.
func RankSignals(scored []ScoredSignal) []ScoredSignal {
	out := make([]ScoredSignal, len(scored))
	copy(out, scored)
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// SelectBest returns at most maxCount signals, highest score first.
func SelectBest(scored []ScoredSignal, maxCount int) []ScoredSignal {
	ranked := RankSignals(scored)
	if len(ranked) < maxCount {
		maxCount = len(ranked)
	}
	return ranked[:maxCount]
}

// IsMarketOpen reports whether t (in loc, normally America/New_York) falls
// within the regular 9:30-16:00 session.
func IsMarketOpen(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, loc)
	return local.After(open) && local.Before(close)
}

func IsPreMarket(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	preOpen := time.Date(local.Year(), local.Month(), local.Day(), 4, 0, 0, 0, loc)
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, loc)
	return local.After(preOpen) && local.Before(open)
}

func IsAfterHours(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, loc)
	afterClose := time.Date(local.Year(), local.Month(), local.Day(), 20, 0, 0, 0, loc)
	return local.After(close) && local.Before(afterClose)
}

// EODTime returns 15:50 local on date, the cutoff the live loop uses to stop
// opening new positions ahead of the close.
func EODTime(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 15, 50, 0, 0, loc)
}
