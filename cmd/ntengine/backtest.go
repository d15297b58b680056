package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ridgeline-quant/ntengine/pkg/analysis"
	"github.com/ridgeline-quant/ntengine/pkg/backtest"
	"github.com/ridgeline-quant/ntengine/pkg/config"
	"github.com/ridgeline-quant/ntengine/pkg/fetcher"
	"github.com/ridgeline-quant/ntengine/pkg/marketdata"
	"github.com/ridgeline-quant/ntengine/pkg/microstructure"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
	"github.com/ridgeline-quant/ntengine/pkg/risk"
	"github.com/ridgeline-quant/ntengine/pkg/stats"
	"github.com/ridgeline-quant/ntengine/pkg/store"
)

func newBacktestCmd() *cobra.Command {
	var (
		symbolsFlag   string
		fromFlag      string
		toFlag        string
		capitalFlag   float64
		allowShort    bool
		databaseFlag  string
		cacheDir      string
		walkForward   bool
		walkWindows   int
		monteCarlo    int
		modelPath     string
		cashSweepRate float64
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a deterministic bar-by-bar backtest over historical data",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			from, err := time.Parse("2006-01-02", fromFlag)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			to, err := time.Parse("2006-01-02", toFlag)
			if err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			symbols := strings.Split(symbolsFlag, ",")

			f := fetcher.New(cfg.PolygonAPIKey, cfg.PolygonMaxConcurrent, cfg.PolygonRatePerMinute)
			if cacheDir != "" {
				f = f.WithCache(fetcher.NewDiskCache(cacheDir))
			}
			bySymbol := make(map[string]marketdata.Series, len(symbols))
			for _, sym := range symbols {
				sym = strings.TrimSpace(sym)
				bars, err := f.FetchDailyBars(cmd.Context(), sym, from, to)
				if err != nil {
					return fmt.Errorf("fetching %s: %w", sym, err)
				}
				bySymbol[sym] = bars
			}

			gate := risk.NewGate(riskParamsFromConfig(cfg))
			source := analysis.New(analysis.DefaultParams())
			if modelPath != "" {
				model, err := loadModel(modelPath)
				if err != nil {
					return fmt.Errorf("loading model: %w", err)
				}
				source.Model = model
			}

			engineCfg := backtest.Config{
				Symbols:             symbols,
				Start:               from,
				End:                 to,
				InitialCapital:      decimal.NewFromFloat(capitalFlag),
				PositionSizePct:     cfg.MaxPositionSizePct,
				CommissionModel:     microstructure.DefaultCommissionModel(),
				Slippage:            microstructure.PercentSlippage{Pct: decimal.NewFromFloat(0.001)},
				AllowShorting:       allowShort,
				MarginMultiplier:    decimal.NewFromInt(1),
				MaxDrawdownHaltPct:  decimal.NewFromInt(25),
				CashSweepRateAnnual: decimal.NewFromFloat(cashSweepRate),
				ConfidenceThreshold: cfg.MinConfidence,
			}

			if walkForward {
				windows := splitIntoWindows(from, to, walkWindows)
				paramSets := []backtest.ParamSet{
					{Label: "conservative", Apply: func(c *backtest.Config) { c.ConfidenceThreshold = cfg.MinConfidence + 0.1 }},
					{Label: "baseline", Apply: func(c *backtest.Config) { c.ConfidenceThreshold = cfg.MinConfidence }},
					{Label: "aggressive", Apply: func(c *backtest.Config) { c.ConfidenceThreshold = cfg.MinConfidence - 0.1 }},
				}
				results := backtest.WalkForward(engineCfg, windows, paramSets, bySymbol,
					func() *risk.Gate { return risk.NewGate(riskParamsFromConfig(cfg)) },
					source, scoreBySharpe)
				for i, r := range results {
					fmt.Printf("window %d: trades=%d halted=%v\n", i, len(r.State.Trades), r.Halted)
					printSummary(r)
				}
				return nil
			}

			engine := backtest.NewEngine(engineCfg, gate, source)
			result := engine.Run(bySymbol)

			printSummary(result)

			if monteCarlo > 0 {
				printMonteCarlo(result, monteCarlo, engineCfg.InitialCapital)
			}

			if databaseFlag != "" {
				if err := persistRun(cmd.Context(), databaseFlag, "backtest-"+time.Now().UTC().Format("20060102T150405"), engineCfg, result); err != nil {
					return fmt.Errorf("persisting run: %w", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbolsFlag, "symbols", "AAPL,MSFT", "comma-separated ticker list")
	cmd.Flags().StringVar(&fromFlag, "from", time.Now().AddDate(-1, 0, 0).Format("2006-01-02"), "start date YYYY-MM-DD")
	cmd.Flags().StringVar(&toFlag, "to", time.Now().Format("2006-01-02"), "end date YYYY-MM-DD")
	cmd.Flags().Float64Var(&capitalFlag, "capital", 100000, "initial capital")
	cmd.Flags().BoolVar(&allowShort, "allow-short", false, "permit short selling")
	cmd.Flags().StringVar(&databaseFlag, "database-url", "", "persist the run to this store (sqlite:// or postgres://); empty skips persistence")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", "", "disk cache directory for fetched bars; empty disables caching")
	cmd.Flags().BoolVar(&walkForward, "walk-forward", false, "run walk-forward optimization instead of a single pass")
	cmd.Flags().IntVar(&walkWindows, "walk-windows", 4, "number of train/test windows for --walk-forward")
	cmd.Flags().IntVar(&monteCarlo, "monte-carlo", 0, "bootstrap this many equity paths from realized trade returns; 0 disables")
	cmd.Flags().StringVar(&modelPath, "model", "", "trained mlmodel weights JSON (from `ntengine train`); empty uses the hand-tuned default")
	cmd.Flags().Float64Var(&cashSweepRate, "cash-sweep-rate", 0, "annualized rate for continuously-compounded accrual on idle cash; 0 disables")

	return cmd
}

// splitIntoWindows divides [from, to] into n equal windows, each split into
// a train period (its first 70%) feeding its own test period (the remaining
// 30%); no window's test period overlaps another window's train period.
func splitIntoWindows(from, to time.Time, n int) []backtest.Window {
	if n < 1 {
		n = 1
	}
	total := to.Sub(from)
	step := total / time.Duration(n)

	windows := make([]backtest.Window, 0, n)
	for i := 0; i < n; i++ {
		trainStart := from.Add(time.Duration(i) * step)
		mid := trainStart.Add(step * 7 / 10)
		testEnd := trainStart.Add(step)
		if i == n-1 {
			testEnd = to
		}
		windows = append(windows, backtest.Window{
			TrainStart: trainStart, TrainEnd: mid,
			TestStart: mid, TestEnd: testEnd,
		})
	}
	return windows
}

func scoreBySharpe(r backtest.Result) float64 {
	equity := make([]float64, len(r.State.EquityCurve))
	for i, pt := range r.State.EquityCurve {
		equity[i], _ = pt.Equity.Float64()
	}
	return stats.Sharpe(stats.DailyReturns(equity))
}

func printMonteCarlo(result backtest.Result, paths int, initialCapital decimal.Decimal) {
	returns := make([]float64, 0, len(result.State.Trades))
	for _, t := range result.State.Trades {
		returns = append(returns, t.ReturnPct/100)
	}
	if len(returns) == 0 {
		fmt.Println("monte carlo: no trades to resample")
		return
	}
	initial, _ := initialCapital.Float64()
	mc := stats.BootstrapTradeReturns(returns, paths, initial, rand.Float64)
	fmt.Printf("Monte Carlo (%d paths): P5=%.2f P50=%.2f P95=%.2f ProbOfLoss=%.1f%%\n",
		paths, mc.P5, mc.P50, mc.P95, mc.ProbOfLoss*100)
}

func riskParamsFromConfig(cfg *config.Config) risk.Parameters {
	return risk.Parameters{
		MaxRiskPerTradePct:   cfg.MaxRiskPerTradePct,
		MaxPortfolioRiskPct:  cfg.MaxPortfolioRiskPct,
		MaxPositionSizePct:   cfg.MaxPositionSizePct,
		DefaultStopLossPct:   cfg.DefaultStopLossPct,
		DefaultTakeProfitPct: cfg.DefaultTakeProfitPct,
		TrailingStopEnabled:  cfg.TrailingStopEnabled,
		TrailingStopPct:      cfg.TrailingStopPct,
		MinConfidence:        cfg.MinConfidence,
		DailyLossLimitPct:    cfg.DailyLossLimitPct,
		MaxConsecutiveLosses: cfg.MaxConsecutiveLosses,
		DrawdownLimitPct:     cfg.DrawdownLimitPct,
	}
}

func printSummary(result backtest.Result) {
	if len(result.State.EquityCurve) == 0 {
		fmt.Println("no equity curve produced (empty symbol set or date range)")
		return
	}

	equity := make([]float64, len(result.State.EquityCurve))
	for i, pt := range result.State.EquityCurve {
		equity[i], _ = pt.Equity.Float64()
	}
	returns := stats.DailyReturns(equity)
	dd := stats.MaxDrawdown(equity)

	fmt.Printf("Final equity: %s\n", result.State.EquityCurve[len(result.State.EquityCurve)-1].Equity.StringFixed(2))
	fmt.Printf("Trades: %d\n", len(result.State.Trades))
	fmt.Printf("Sharpe: %.3f  Sortino: %.3f\n", stats.Sharpe(returns), stats.Sortino(returns))
	fmt.Printf("Max drawdown: %.2f%% over %d bars\n", dd.MaxDepthPct, dd.DurationBars)
	if result.Halted {
		fmt.Printf("Halted: %s\n", result.HaltReason)
	}
	if len(result.Quality.Issues) > 0 {
		fmt.Printf("Data quality issues: %d (truncated=%v)\n", len(result.Quality.Issues), result.Quality.Truncated)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result.State.Trades)
}

func persistRun(ctx context.Context, databaseURL, runID string, cfg backtest.Config, result backtest.Result) error {
	s, err := store.Open(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer s.Close()

	trades := make([]store.TradeRecord, len(result.State.Trades))
	for i, t := range result.State.Trades {
		trades[i] = store.TradeRecord{
			RunID: runID, Symbol: t.Symbol, Direction: directionString(t.Direction),
			EntryDate: t.EntryDate, ExitDate: t.ExitDate,
			EntryPrice: t.EntryPrice.String(), ExitPrice: t.ExitPrice.String(),
			Shares: t.Shares.String(), GrossPnL: t.GrossPnL.String(),
			Commission: t.Commission.String(), NetPnL: t.NetPnL.String(),
			ReturnPct: t.ReturnPct, ExitReason: exitReasonString(t.ExitReason),
		}
	}
	equity := make([]store.EquityPointRecord, len(result.State.EquityCurve))
	for i, e := range result.State.EquityCurve {
		equity[i] = store.EquityPointRecord{RunID: runID, Date: e.Date, Equity: e.Equity.String()}
	}
	issues := make([]store.DataQualityIssueRecord, len(result.Quality.Issues))
	for i, iss := range result.Quality.Issues {
		issues[i] = store.DataQualityIssueRecord{RunID: runID, Symbol: iss.Symbol, Date: iss.Date, Kind: iss.Kind, Detail: iss.Detail}
	}

	final := decimal.Zero
	if len(result.State.EquityCurve) > 0 {
		final = result.State.EquityCurve[len(result.State.EquityCurve)-1].Equity
	}
	run := store.RunRecord{
		RunID: runID, StartedAt: cfg.Start, Symbols: strings.Join(cfg.Symbols, ","),
		InitialCapital: cfg.InitialCapital.String(), FinalEquity: final.String(),
	}
	return s.SaveRun(ctx, run, trades, equity, issues)
}

func directionString(d orders.Direction) string {
	if d == orders.Short {
		return "short"
	}
	return "long"
}

func exitReasonString(r orders.ExitReason) string {
	switch r {
	case orders.ExitStopLoss:
		return "stop_loss"
	case orders.ExitTakeProfit:
		return "take_profit"
	case orders.ExitTrailingStop:
		return "trailing_stop"
	case orders.ExitExpiry:
		return "expiry"
	case orders.ExitEndOfTest:
		return "end_of_test"
	default:
		return "signal"
	}
}
