package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ridgeline-quant/ntengine/pkg/analysis"
	"github.com/ridgeline-quant/ntengine/pkg/config"
	"github.com/ridgeline-quant/ntengine/pkg/fetcher"
	"github.com/ridgeline-quant/ntengine/pkg/orders"
	"github.com/ridgeline-quant/ntengine/pkg/scanner"
)

func signalTypeString(t orders.SignalType) string {
	if t == orders.Sell {
		return "SELL"
	}
	return "BUY"
}

func newScanCmd() *cobra.Command {
	var (
		lookbackDays int
		modelPath    string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a one-shot scan over the configured universe and print ranked signals, without trading",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			scan := scanner.New(cfg)
			source := analysis.New(analysis.DefaultParams())
			if modelPath != "" {
				model, err := loadModel(modelPath)
				if err != nil {
					return fmt.Errorf("loading model: %w", err)
				}
				source.Model = model
			}
			f := fetcher.New(cfg.PolygonAPIKey, cfg.PolygonMaxConcurrent, cfg.PolygonRatePerMinute)

			to := time.Now()
			from := to.AddDate(0, 0, -lookbackDays)

			var scored []scanner.ScoredSignal
			for _, ticker := range scan.Tickers() {
				bars, err := f.FetchDailyBars(cmd.Context(), ticker, from, to)
				if err != nil {
					fmt.Printf("%s: fetch error: %v\n", ticker, err)
					continue
				}
				if len(bars) == 0 {
					continue
				}
				last := bars[len(bars)-1]
				if !scan.Admit(ticker, last.Close, last.Volume) {
					continue
				}

				signals := source.SignalsFor(ticker, last.Date, bars)
				features := source.Features(bars)
				pattern := analysis.DetectPattern(bars)
				for _, sig := range signals {
					score := scanner.Score(sig, features, pattern)
					scored = append(scored, scanner.ScoredSignal{Signal: sig, Score: score})
				}
			}

			ranked := scanner.RankSignals(scored)
			if len(ranked) == 0 {
				fmt.Println("no admissible signals found")
				return nil
			}
			for _, s := range ranked {
				fmt.Printf("%-6s %-4s score=%.3f confidence=%.3f price=%s reason=%q\n",
					s.Signal.Symbol, signalTypeString(s.Signal.Type), s.Score, s.Signal.Confidence, s.Signal.Price.StringFixed(2), s.Signal.Reason)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&lookbackDays, "lookback-days", 120, "days of history to fetch per ticker before scoring")
	cmd.Flags().StringVar(&modelPath, "model", "", "trained mlmodel weights JSON (from `ntengine train`); empty uses the hand-tuned default")

	return cmd
}
