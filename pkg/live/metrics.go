package live

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus counters/histograms the live loop exposes on
// the admin HTTP surface's /metrics endpoint.
type Metrics struct {
	ScanCycles      prometheus.Counter
	SymbolsScanned  prometheus.Counter
	SignalsGenerated prometheus.Counter
	OrdersSubmitted prometheus.Counter
	OrdersRejected  prometheus.Counter
	CycleDuration   prometheus.Histogram
}

// NewMetrics registers the live loop's metric family on reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across parallel test runs.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScanCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntengine_live_scan_cycles_total",
			Help: "Number of completed scan-analyze-execute cycles.",
		}),
		SymbolsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntengine_live_symbols_scanned_total",
			Help: "Number of symbols fetched and checked against the universe filter across all cycles.",
		}),
		SignalsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntengine_live_signals_generated_total",
			Help: "Number of buy signals the analyzer emitted across all cycles.",
		}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntengine_live_orders_submitted_total",
			Help: "Number of orders successfully submitted to the broker.",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ntengine_live_orders_rejected_total",
			Help: "Number of candidate trades rejected by the risk gate or ML gate.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ntengine_live_cycle_duration_seconds",
			Help:    "Wall-clock duration of one scan-analyze-execute cycle.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.ScanCycles, m.SymbolsScanned, m.SignalsGenerated, m.OrdersSubmitted, m.OrdersRejected, m.CycleDuration)
	return m
}
