// Package calibrate picks the decision threshold of a binary classifier from
// validation probabilities, preferring thresholds with no false positives.
package calibrate

// Metrics holds binary confusion counts and positive-class scores.
type Metrics struct {
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
	Precision      float64
	Recall         float64
	F1             float64
}

// Evaluate predicts positive when prob >= threshold and compares against
// labels (1 positive, 0 negative). Undefined ratios are 0.
func Evaluate(probs []float64, labels []int, threshold float64) Metrics {
	var m Metrics
	for i, p := range probs {
		predicted := p >= threshold
		switch {
		case predicted && labels[i] == 1:
			m.TruePositives++
		case predicted:
			m.FalsePositives++
		case labels[i] == 1:
			m.FalseNegatives++
		default:
			m.TrueNegatives++
		}
	}
	m.score()
	return m
}

func (m *Metrics) score() {
	tp, fp, fn := m.TruePositives, m.FalsePositives, m.FalseNegatives
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
}

// Accuracy returns the fraction of correct predictions.
func (m Metrics) Accuracy() float64 {
	n := m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
	if n == 0 {
		return 0
	}
	return float64(m.TruePositives+m.TrueNegatives) / float64(n)
}
