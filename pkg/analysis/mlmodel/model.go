// Package mlmodel is the in-process logistic-regression scorer adapted from
// the teacher's pkg/ml/{model,scorer}.go: a fixed-weight linear model over
// indicator features, squashed through a sigmoid, with no training loop at
// runtime (weights are fit offline and loaded, matching the teacher's
// "frozen model" deployment shape).
package mlmodel

import "math"

// Model is a logistic-regression classifier: P(favorable) = sigmoid(w·x + b).
type Model struct {
	Weights map[string]float64
	Bias    float64
}

// Default returns the teacher's hand-tuned starting weights, used when no
// trained model file is configured. Features: rsi_centered, vwap_ext,
// volume_ratio, atr_pct, pattern_bull, pattern_bear.
func Default() *Model {
	return &Model{
		Weights: map[string]float64{
			"rsi_centered": -0.35,
			"vwap_ext":     -0.20,
			"volume_ratio": 0.45,
			"atr_pct":      -0.15,
			"pattern_bull": 0.60,
			"pattern_bear": -0.60,
		},
		Bias: -0.10,
	}
}

// Predict returns a probability in (0, 1) that the signal is favorable.
func (m *Model) Predict(features map[string]float64) float64 {
	z := m.Bias
	for k, w := range m.Weights {
		z += w * features[k]
	}
	return 1 / (1 + math.Exp(-z))
}

// Fit performs batch gradient descent over labeled samples (1 = favorable,
// 0 = unfavorable), used by cmd/ntengine train. Mirrors the teacher's
// from-scratch training loop rather than importing a full ML framework: the
// feature set is six dimensions and a framework dependency would dwarf the
// problem it solves.
func (m *Model) Fit(samples []map[string]float64, labels []float64, epochs int, lr float64) {
	if len(samples) == 0 || len(samples) != len(labels) {
		return
	}
	keys := make([]string, 0, len(m.Weights))
	for k := range m.Weights {
		keys = append(keys, k)
	}
	n := float64(len(samples))
	for e := 0; e < epochs; e++ {
		gradBias := 0.0
		gradW := make(map[string]float64, len(keys))
		for i, x := range samples {
			pred := m.Predict(x)
			err := pred - labels[i]
			gradBias += err
			for _, k := range keys {
				gradW[k] += err * x[k]
			}
		}
		m.Bias -= lr * gradBias / n
		for _, k := range keys {
			m.Weights[k] -= lr * gradW[k] / n
		}
	}
}
