package live

import "sync"

// FunnelReport tallies one trading day's scan->analyze->signal->gate->
// execute pipeline. Emitted unconditionally at EOD shutdown, even when
// every count is zero — a quiet day is still a reportable outcome, not an
// absence of one.
type FunnelReport struct {
	mu sync.Mutex

	Scanned      int
	Admitted     int
	Analyzed     int
	SignalsFound int
	RiskApproved int
	MLApproved   int
	Submitted    int
	Filled       int
	Rejected     int
	RejectReasons map[string]int
}

func NewFunnelReport() *FunnelReport {
	return &FunnelReport{RejectReasons: make(map[string]int)}
}

func (f *FunnelReport) incr(counter *int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	*counter++
}

func (f *FunnelReport) RecordScanned()      { f.incr(&f.Scanned) }
func (f *FunnelReport) RecordAdmitted()     { f.incr(&f.Admitted) }
func (f *FunnelReport) RecordAnalyzed()     { f.incr(&f.Analyzed) }
func (f *FunnelReport) RecordSignalFound()  { f.incr(&f.SignalsFound) }
func (f *FunnelReport) RecordRiskApproved() { f.incr(&f.RiskApproved) }
func (f *FunnelReport) RecordMLApproved()   { f.incr(&f.MLApproved) }
func (f *FunnelReport) RecordSubmitted()    { f.incr(&f.Submitted) }
func (f *FunnelReport) RecordFilled()       { f.incr(&f.Filled) }

func (f *FunnelReport) RecordRejected(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Rejected++
	f.RejectReasons[reason]++
}

// Snapshot returns a copy safe to log or marshal without holding the lock.
func (f *FunnelReport) Snapshot() FunnelReport {
	f.mu.Lock()
	defer f.mu.Unlock()
	reasons := make(map[string]int, len(f.RejectReasons))
	for k, v := range f.RejectReasons {
		reasons[k] = v
	}
	return FunnelReport{
		Scanned: f.Scanned, Admitted: f.Admitted, Analyzed: f.Analyzed,
		SignalsFound: f.SignalsFound, RiskApproved: f.RiskApproved, MLApproved: f.MLApproved,
		Submitted: f.Submitted, Filled: f.Filled, Rejected: f.Rejected, RejectReasons: reasons,
	}
}
