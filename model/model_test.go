package model

import (
	"math"
	"testing"
)

func TestSoftmax(t *testing.T) {
	tests := []struct {
		name   string
		logits [NumLabels]float64
		want1  float64
	}{
		{"equal", [NumLabels]float64{0, 0}, 0.5},
		{"positive", [NumLabels]float64{0, math.Log(3)}, 0.75},
		{"large", [NumLabels]float64{1000, 1000}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Softmax(tt.logits)
			if math.Abs(p[1]-tt.want1) > 1e-12 {
				t.Errorf("p[1] = %v, want %v", p[1], tt.want1)
			}
			if math.Abs(p[0]+p[1]-1) > 1e-12 {
				t.Errorf("probabilities sum to %v", p[0]+p[1])
			}
		})
	}
}

func TestWeightedCrossEntropy(t *testing.T) {
	logits := [][NumLabels]float64{{0, 0}, {0, 0}}
	labels := []int{0, 1}

	loss, grad := WeightedCrossEntropy(logits, labels, [NumLabels]float64{1, 3})
	if math.Abs(loss-math.Ln2) > 1e-12 {
		t.Errorf("loss = %v, want ln 2", loss)
	}
	// d/dz = w * (p - onehot) / sum(w)
	want := [][NumLabels]float64{{-0.125, 0.125}, {0.375, -0.375}}
	for i := range grad {
		for c := range grad[i] {
			if math.Abs(grad[i][c]-want[i][c]) > 1e-12 {
				t.Errorf("grad[%d][%d] = %v, want %v", i, c, grad[i][c], want[i][c])
			}
		}
	}
}

func TestWeightedCrossEntropy_WeightsShiftLoss(t *testing.T) {
	logits := [][NumLabels]float64{{2, 0}, {2, 0}}
	labels := []int{0, 1}

	plain, _ := WeightedCrossEntropy(logits, labels, [NumLabels]float64{1, 1})
	weighted, _ := WeightedCrossEntropy(logits, labels, [NumLabels]float64{1, 4})
	if weighted <= plain {
		t.Errorf("upweighting the misclassified class should raise loss: %v <= %v", weighted, plain)
	}
}

func TestSnapshotClone(t *testing.T) {
	snap := Snapshot{"w": {1, 2, 3}}
	c := snap.Clone()

	snap["w"][0] = 99
	if c["w"][0] != 1 {
		t.Error("clone aliases snapshot data")
	}
}

func TestClipNorm(t *testing.T) {
	tests := []struct {
		name     string
		grad     [NumLabels]float64
		max      float64
		wantNorm float64
		want     [NumLabels]float64
	}{
		{"clipped", [NumLabels]float64{3, 4}, 1, 5, [NumLabels]float64{3 / (5 + 1e-6), 4 / (5 + 1e-6)}},
		{"under limit", [NumLabels]float64{0.3, 0.4}, 1, 0.5, [NumLabels]float64{0.3, 0.4}},
		{"disabled", [NumLabels]float64{3, 4}, 0, 5, [NumLabels]float64{3, 4}},
		{"zero", [NumLabels]float64{0, 0}, 1, 0, [NumLabels]float64{0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grad := [][NumLabels]float64{tt.grad}
			norm := ClipNorm(grad, tt.max)
			if math.Abs(norm-tt.wantNorm) > 1e-12 {
				t.Errorf("norm = %v, want %v", norm, tt.wantNorm)
			}
			for c := range grad[0] {
				if math.Abs(grad[0][c]-tt.want[c]) > 1e-12 {
					t.Errorf("grad[%d] = %v, want %v", c, grad[0][c], tt.want[c])
				}
			}
		})
	}
}
