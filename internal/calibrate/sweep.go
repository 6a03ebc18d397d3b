package calibrate

import (
	"fmt"
	"sort"
)

// Grid bounds and size for the threshold search.
const (
	GridMin   = 0.5
	GridMax   = 0.99
	GridSteps = 20
)

// SweepResult holds metrics for one threshold value.
type SweepResult struct {
	Threshold float64
	Metrics   Metrics
}

// Result is the chosen threshold and the full table it was chosen from.
type Result struct {
	Threshold float64
	// ZeroFalsePositives reports whether the chosen threshold made no false
	// positive on the validation set.
	ZeroFalsePositives bool
	Table              []SweepResult
}

// SweepThresholds returns n evenly spaced values from min to max inclusive.
// The last value is exactly max.
func SweepThresholds(min, max float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{min}
	}
	step := (max - min) / float64(n-1)
	thresholds := make([]float64, n)
	for i := range thresholds {
		thresholds[i] = min + float64(i)*step
	}
	thresholds[n-1] = max
	return thresholds
}

// Grid returns the default 20-point grid over [0.5, 0.99].
func Grid() []float64 {
	return SweepThresholds(GridMin, GridMax, GridSteps)
}

// Sweep evaluates every threshold, in the given order.
func Sweep(probs []float64, labels []int, thresholds []float64) []SweepResult {
	results := make([]SweepResult, len(thresholds))
	for i, thr := range thresholds {
		results[i] = SweepResult{Threshold: thr, Metrics: Evaluate(probs, labels, thr)}
	}
	return results
}

// Select applies the precision-first policy:
//  1. among rows with zero false positives, highest recall, then F1, then threshold;
//  2. otherwise highest precision, then F1, then threshold.
//
// It returns false for an empty table.
func Select(rows []SweepResult) (SweepResult, bool) {
	var zeroFP []SweepResult
	for _, r := range rows {
		if r.Metrics.FalsePositives == 0 {
			zeroFP = append(zeroFP, r)
		}
	}

	if len(zeroFP) > 0 {
		return best(zeroFP, func(r SweepResult) float64 { return r.Metrics.Recall }), true
	}
	if len(rows) == 0 {
		return SweepResult{}, false
	}
	return best(rows, func(r SweepResult) float64 { return r.Metrics.Precision }), true
}

func best(rows []SweepResult, primary func(SweepResult) float64) SweepResult {
	sorted := append([]SweepResult(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if primary(a) != primary(b) {
			return primary(a) > primary(b)
		}
		if a.Metrics.F1 != b.Metrics.F1 {
			return a.Metrics.F1 > b.Metrics.F1
		}
		return a.Threshold > b.Threshold
	})
	return sorted[0]
}

// Calibrate sweeps the default grid and selects a threshold.
func Calibrate(probs []float64, labels []int) (Result, error) {
	if len(probs) != len(labels) {
		return Result{}, fmt.Errorf("got %d probabilities for %d labels", len(probs), len(labels))
	}
	if len(probs) == 0 {
		return Result{}, fmt.Errorf("no validation examples")
	}

	table := Sweep(probs, labels, Grid())
	chosen, _ := Select(table)
	return Result{
		Threshold:          chosen.Threshold,
		ZeroFalsePositives: chosen.Metrics.FalsePositives == 0,
		Table:              table,
	}, nil
}
