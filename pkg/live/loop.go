// Package live generalizes the teacher's main.go TradingBot: a
// scan-analyze-signal-gate-execute-reconcile loop that polls the scanner's
// ticker universe on a fixed interval, bounds concurrent per-symbol analysis
// at a fixed width of five, and closes every open position once the
// 15:50 ET cutoff has passed. Where the teacher's Run/Shutdown were a TODO-laden
// placeholder around a bare channel wait, this fills in the pipeline the
// comments described.
package live

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/ridgeline-quant/ntengine/pkg/analysis"
	"github.com/ridgeline-quant/ntengine/pkg/broker"
	"github.com/ridgeline-quant/ntengine/pkg/config"
	"github.com/ridgeline-quant/ntengine/pkg/fetcher"
	"github.com/ridgeline-quant/ntengine/pkg/logging"
	"github.com/ridgeline-quant/ntengine/pkg/mlgate"
	"github.com/ridgeline-quant/ntengine/pkg/risk"
	"github.com/ridgeline-quant/ntengine/pkg/scanner"
)

// maxInFlightAnalyses bounds how many symbols are analyzed concurrently per
// scan cycle, independent of the fetcher's own rate-limited concurrency cap.
const maxInFlightAnalyses = 5

const historyLookbackDays = 90

// Loop is the live scan-analyze-signal-gate-execute-reconcile pipeline.
type Loop struct {
	cfg      *config.Config
	fetch    *fetcher.Fetcher
	scan     *scanner.Scanner
	analyzer *analysis.Analyzer
	gate     *risk.Gate
	mlGate   mlgate.Gate
	brk      broker.BrokerClient
	location *time.Location
	metrics  *Metrics

	scanInterval time.Duration
	sem          *semaphore.Weighted
	log          zerolog.Logger
	shutdown     chan struct{}
	funnel       *FunnelReport
}

type Params struct {
	Config       *config.Config
	Fetcher      *fetcher.Fetcher
	Scanner      *scanner.Scanner
	Analyzer     *analysis.Analyzer
	Gate         *risk.Gate
	MLGate       mlgate.Gate
	Broker       broker.BrokerClient
	Location     *time.Location
	Metrics      *Metrics
	ScanInterval time.Duration
}

func New(p Params) *Loop {
	if p.MLGate == nil {
		p.MLGate = mlgate.NoopGate{}
	}
	if p.ScanInterval == 0 {
		p.ScanInterval = time.Minute
	}
	return &Loop{
		cfg: p.Config, fetch: p.Fetcher, scan: p.Scanner, analyzer: p.Analyzer,
		gate: p.Gate, mlGate: p.MLGate, brk: p.Broker, location: p.Location, metrics: p.Metrics,
		scanInterval: p.ScanInterval,
		sem:          semaphore.NewWeighted(maxInFlightAnalyses),
		log:          logging.For("live"),
		shutdown:     make(chan struct{}),
		funnel:       NewFunnelReport(),
	}
}

// Funnel returns the running daily funnel report (read-only use).
func (l *Loop) Funnel() FunnelReport { return l.funnel.Snapshot() }

// Run drives the loop until ctx is canceled or Shutdown is called. It ticks
// every scanInterval; outside regular market hours it idles without
// scanning, matching the teacher's EOD-aware intent.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info().Msg("live loop starting")
	ticker := time.NewTicker(l.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return l.closeAllPositions(context.Background())
		case <-l.shutdown:
			return l.closeAllPositions(context.Background())
		case now := <-ticker.C:
			if err := l.tick(ctx, now); err != nil {
				l.log.Error().Err(err).Msg("cycle failed")
			}
		}
	}
}

// Shutdown requests the loop stop and flatten all positions; it does not
// block past its own enqueue.
func (l *Loop) Shutdown() {
	select {
	case <-l.shutdown:
	default:
		close(l.shutdown)
	}
}

func (l *Loop) tick(ctx context.Context, now time.Time) error {
	local := now.In(l.location)
	if !scanner.IsMarketOpen(local, l.location) {
		return nil
	}
	if local.After(scanner.EODTime(local, l.location)) {
		return l.closeAllPositions(ctx)
	}

	start := time.Now()
	defer func() {
		if l.metrics != nil {
			l.metrics.CycleDuration.Observe(time.Since(start).Seconds())
			l.metrics.ScanCycles.Inc()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, symbol := range l.scan.Tickers() {
		symbol := symbol
		g.Go(func() error {
			if err := l.sem.Acquire(gctx, 1); err != nil {
				return nil // context canceled; not a pipeline failure
			}
			defer l.sem.Release(1)
			return l.processSymbol(gctx, symbol, local)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return l.reconcile(ctx)
}

func (l *Loop) closeAllPositions(ctx context.Context) error {
	defer func() {
		snapshot := l.funnel.Snapshot()
		l.log.Info().
			Int("scanned", snapshot.Scanned).Int("admitted", snapshot.Admitted).
			Int("signals", snapshot.SignalsFound).Int("submitted", snapshot.Submitted).
			Int("rejected", snapshot.Rejected).
			Msg("daily funnel report")
	}()
	positions, err := l.brk.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("listing positions at close: %w", err)
	}
	for _, p := range positions {
		if err := l.brk.ClosePosition(ctx, p.Symbol); err != nil {
			l.log.Error().Err(err).Str("symbol", p.Symbol).Msg("failed to close position at EOD")
			continue
		}
		l.gate.ClosePosition(p.Symbol)
	}
	return nil
}
