// Package mlgate declares the optional ML probability gate the live loop
// consults after the risk gate: POST features -> {probability,
// expected_return, recommendation}; any error or timeout degrades to a
// conservative reject rather than aborting the loop.
package mlgate

import "context"

type Recommendation string

const (
	RecommendApprove Recommendation = "approve"
	RecommendReject  Recommendation = "reject"
)

type Score struct {
	Probability      float64
	ExpectedReturn   float64
	Recommendation   Recommendation
}

// Gate is the opaque score(features) -> probability capability.
type Gate interface {
	Score(ctx context.Context, features map[string]float64) (Score, error)
}

// NoopGate always approves with probability 0.5 — the "disabled" gate used
// when no ML scorer is configured.
type NoopGate struct{}

func (NoopGate) Score(ctx context.Context, features map[string]float64) (Score, error) {
	return Score{Probability: 0.5, Recommendation: RecommendApprove}, nil
}
