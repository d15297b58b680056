package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ridgeline-quant/ntengine/pkg/analysis"
	"github.com/ridgeline-quant/ntengine/pkg/broker"
	"github.com/ridgeline-quant/ntengine/pkg/broker/paper"
	"github.com/ridgeline-quant/ntengine/pkg/broker/signalstack"
	"github.com/ridgeline-quant/ntengine/pkg/config"
	"github.com/ridgeline-quant/ntengine/pkg/fetcher"
	"github.com/ridgeline-quant/ntengine/pkg/live"
	"github.com/ridgeline-quant/ntengine/pkg/mlgate"
	"github.com/ridgeline-quant/ntengine/pkg/risk"
	"github.com/ridgeline-quant/ntengine/pkg/scanner"
	"github.com/ridgeline-quant/ntengine/pkg/security"
)

func newLiveCmd() *cobra.Command {
	var (
		brokerMode   string
		webhookURL   string
		initialCash  float64
		adminAddr    string
		mlGateURL    string
		tzName       string
		scanInterval time.Duration
		modelPath    string
	)

	cmd := &cobra.Command{
		Use:   "live",
		Short: "Run the live scan -> analyze -> signal -> execute trading loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if err := cfg.Validate(true); err != nil {
				return err
			}

			loc, err := time.LoadLocation(tzName)
			if err != nil {
				return fmt.Errorf("invalid --tz: %w", err)
			}

			var brk broker.BrokerClient
			switch brokerMode {
			case "paper":
				brk = paper.New(decimal.NewFromFloat(initialCash))
			case "signalstack":
				if webhookURL == "" {
					return fmt.Errorf("--webhook-url is required for --broker=signalstack")
				}
				brk = signalstack.New(webhookURL)
			default:
				return fmt.Errorf("unknown --broker %q (want paper or signalstack)", brokerMode)
			}

			var mlg mlgate.Gate
			if mlGateURL != "" {
				mlg = mlgate.NewHTTPGate(mlGateURL)
			}

			registry := prometheus.NewRegistry()
			metrics := live.NewMetrics(registry)

			analyzer := analysis.New(analysis.DefaultParams())
			if modelPath != "" {
				model, err := loadModel(modelPath)
				if err != nil {
					return fmt.Errorf("loading model: %w", err)
				}
				analyzer.Model = model
			}

			loop := live.New(live.Params{
				Config:       cfg,
				Fetcher:      fetcher.New(cfg.PolygonAPIKey, cfg.PolygonMaxConcurrent, cfg.PolygonRatePerMinute),
				Scanner:      scanner.New(cfg),
				Analyzer:     analyzer,
				Gate:         risk.NewGate(riskParamsFromConfig(cfg)),
				MLGate:       mlg,
				Broker:       brk,
				Location:     loc,
				Metrics:      metrics,
				ScanInterval: scanInterval,
			})

			guard := security.NewBruteForceGuard(cfg.AuthMaxFailures, cfg.AuthFailureWindow, cfg.AuthLockout)
			router := security.NewAdminRouter(security.AdminRouterParams{
				Allowlist:  security.NewAllowlist(cfg.AdminIPAllowlist),
				EnableHSTS: cfg.EnableHSTS,
				Guard:      guard,
			})
			router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			router.Get("/funnel", security.GuardAuth(guard, func(w http.ResponseWriter, r *http.Request) {
				snap := loop.Funnel()
				fmt.Fprintf(w, "scanned=%d admitted=%d analyzed=%d signals=%d risk_approved=%d ml_approved=%d submitted=%d filled=%d rejected=%d\n",
					snap.Scanned, snap.Admitted, snap.Analyzed, snap.SignalsFound, snap.RiskApproved, snap.MLApproved, snap.Submitted, snap.Filled, snap.Rejected)
			}))

			adminSrv := &http.Server{Addr: adminAddr, Handler: router}
			go func() {
				if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					fmt.Fprintf(os.Stderr, "admin server: %v\n", err)
				}
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := make(chan error, 1)
			go func() { runErr <- loop.Run(ctx) }()

			<-ctx.Done()
			loop.Shutdown()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = adminSrv.Shutdown(shutdownCtx)

			return <-runErr
		},
	}

	cmd.Flags().StringVar(&brokerMode, "broker", "paper", "execution backend: paper or signalstack")
	cmd.Flags().StringVar(&webhookURL, "webhook-url", "", "signalstack webhook URL (required for --broker=signalstack)")
	cmd.Flags().Float64Var(&initialCash, "initial-cash", 100000, "starting cash for the paper broker")
	cmd.Flags().StringVar(&adminAddr, "admin-addr", ":9090", "admin HTTP surface listen address")
	cmd.Flags().StringVar(&mlGateURL, "ml-gate-url", "", "HTTP ML confidence gate URL; empty uses the noop gate")
	cmd.Flags().StringVar(&tzName, "tz", "America/New_York", "IANA timezone for market session windows")
	cmd.Flags().DurationVar(&scanInterval, "scan-interval", time.Minute, "interval between scan ticks")
	cmd.Flags().StringVar(&modelPath, "model", "", "trained mlmodel weights JSON (from `ntengine train`); empty uses the hand-tuned default")

	return cmd
}
