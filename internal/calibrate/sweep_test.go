package calibrate

import (
	"math"
	"testing"
)

func TestSweepThresholds(t *testing.T) {
	thresholds := SweepThresholds(0.01, 0.09, 5)

	want := []float64{0.01, 0.03, 0.05, 0.07, 0.09}
	if len(thresholds) != len(want) {
		t.Fatalf("got %d thresholds, want %d: %v", len(thresholds), len(want), thresholds)
	}
	for i := range want {
		if math.Abs(thresholds[i]-want[i]) > 1e-9 {
			t.Errorf("threshold[%d] = %v, want %v", i, thresholds[i], want[i])
		}
	}
}

func TestGrid(t *testing.T) {
	g := Grid()
	if len(g) != 20 {
		t.Fatalf("len(Grid()) = %d, want 20", len(g))
	}
	if g[0] != 0.5 || g[19] != 0.99 {
		t.Errorf("Grid bounds = %v..%v, want 0.5..0.99", g[0], g[19])
	}
	for i := 1; i < len(g); i++ {
		if step := g[i] - g[i-1]; math.Abs(step-0.49/19) > 1e-9 {
			t.Errorf("step %d = %v, want %v", i, step, 0.49/19)
		}
	}
}

func TestCalibrate_PrefersZeroFalsePositives(t *testing.T) {
	probs := []float64{0.95, 0.8, 0.62, 0.58, 0.6, 0.55}
	labels := []int{1, 1, 1, 1, 0, 0}

	res, err := Calibrate(probs, labels)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}

	// First grid point above the 0.6 negative keeps three of four positives
	want := Grid()[4]
	if res.Threshold != want {
		t.Errorf("Threshold = %v, want %v", res.Threshold, want)
	}
	if !res.ZeroFalsePositives {
		t.Error("expected zero false positives")
	}
	if len(res.Table) != 20 {
		t.Errorf("table has %d rows, want 20", len(res.Table))
	}

	chosen := Evaluate(probs, labels, res.Threshold)
	for _, row := range res.Table {
		if row.Metrics.FalsePositives == 0 && row.Metrics.Recall > chosen.Recall {
			t.Errorf("threshold %v has zero FP and higher recall %v", row.Threshold, row.Metrics.Recall)
		}
	}
}

func TestCalibrate_MaxPrecisionWithoutZeroFP(t *testing.T) {
	// The 0.995 negative is above every grid point
	probs := []float64{0.9, 0.8, 0.75, 0.6, 0.995, 0.7}
	labels := []int{1, 1, 1, 1, 0, 0}

	res, err := Calibrate(probs, labels)
	if err != nil {
		t.Fatalf("Calibrate() error = %v", err)
	}
	if res.ZeroFalsePositives {
		t.Fatal("no threshold can avoid the 0.995 negative")
	}

	// Precision peaks at 0.75 for thresholds in (0.7, 0.75]; grid[8] and
	// grid[9] tie on precision and F1, so the higher one wins
	want := Grid()[9]
	if res.Threshold != want {
		t.Errorf("Threshold = %v, want %v", res.Threshold, want)
	}
	if got := Evaluate(probs, labels, res.Threshold).Precision; got != 0.75 {
		t.Errorf("chosen precision = %v, want 0.75", got)
	}
}

func TestSelect_TieBreaks(t *testing.T) {
	rows := []SweepResult{
		{Threshold: 0.6, Metrics: Metrics{Recall: 0.5, F1: 0.6}},
		{Threshold: 0.7, Metrics: Metrics{Recall: 0.5, F1: 0.66}},
		{Threshold: 0.8, Metrics: Metrics{Recall: 0.5, F1: 0.66}},
		{Threshold: 0.9, Metrics: Metrics{Recall: 0.4, F1: 0.9}},
		{Threshold: 0.5, Metrics: Metrics{Recall: 1, F1: 1, FalsePositives: 1}},
	}

	got, ok := Select(rows)
	if !ok {
		t.Fatal("Select() returned false")
	}
	if got.Threshold != 0.8 {
		t.Errorf("Select() threshold = %v, want 0.8", got.Threshold)
	}
}

func TestSelect_Empty(t *testing.T) {
	if _, ok := Select(nil); ok {
		t.Error("Select(nil) returned true")
	}
}

func TestCalibrate_Errors(t *testing.T) {
	if _, err := Calibrate(nil, nil); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := Calibrate([]float64{0.5}, []int{1, 0}); err == nil {
		t.Error("expected error for length mismatch")
	}
}
