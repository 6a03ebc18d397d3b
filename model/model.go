// Package model holds the classifiers that turn token batches into
// two-class logits: a trainable native classifier and an ONNX-backed one
// for exported transformer checkpoints.
package model

import (
	"context"
	"errors"
	"math"

	"github.com/jamesainslie/darkscan/batch"
)

// NumLabels is the number of output classes. Label 1 is the positive class.
const NumLabels = 2

// ErrInvalidModel is returned when weights cannot be decoded or do not match
// the declared architecture.
var ErrInvalidModel = errors.New("model: invalid model")

// Scorer produces logits for a batch. Implementations are safe for
// concurrent use once constructed.
type Scorer interface {
	Logits(ctx context.Context, b *batch.Batch) ([][NumLabels]float64, error)
	// Device names where scoring runs, for example "cpu" or "cuda:0".
	Device() string
	Close() error
}

// Trainable is a Scorer whose weights can be updated in place.
type Trainable interface {
	Scorer
	// TrainBatch runs forward and backward over a labeled batch, applies
	// one update and returns the class-weighted cross-entropy measured
	// before the update.
	TrainBatch(b *batch.Batch, classWeights [NumLabels]float64, step Step) (float64, error)
	// Snapshot copies the current weights.
	Snapshot() Snapshot
	// Restore overwrites the weights with a snapshot taken from the same
	// model.
	Restore(s Snapshot) error
	// Save writes the weights into dir.
	Save(dir string) error
}

// Step configures a single TrainBatch update.
type Step struct {
	LearningRate float64
	// WeightDecay shrinks weight matrices by LearningRate*WeightDecay
	// before the gradient is applied.
	WeightDecay float64
	// ClipNorm caps the global L2 norm of the batch's logit gradients.
	// Zero disables clipping.
	ClipNorm float64
}

// Snapshot is a deep copy of weight tensors keyed by name.
type Snapshot map[string][]float32

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for name, data := range s {
		out[name] = append([]float32(nil), data...)
	}
	return out
}

// Softmax returns the class probabilities of one logits row.
func Softmax(logits [NumLabels]float64) [NumLabels]float64 {
	m := math.Max(logits[0], logits[1])
	e0 := math.Exp(logits[0] - m)
	e1 := math.Exp(logits[1] - m)
	sum := e0 + e1
	return [NumLabels]float64{e0 / sum, e1 / sum}
}

// PositiveProbs returns softmax(logits)[1] for every row.
func PositiveProbs(logits [][NumLabels]float64) []float64 {
	probs := make([]float64, len(logits))
	for i, row := range logits {
		probs[i] = Softmax(row)[1]
	}
	return probs
}

// WeightedCrossEntropy returns the class-weighted mean negative log
// likelihood, sum(w[y_i] * nll_i) / sum(w[y_i]), and its gradient with
// respect to each logit.
func WeightedCrossEntropy(logits [][NumLabels]float64, labels []int, weights [NumLabels]float64) (float64, [][NumLabels]float64) {
	grad := make([][NumLabels]float64, len(logits))
	var loss, norm float64
	for i := range logits {
		norm += weights[labels[i]]
	}
	if norm == 0 {
		return 0, grad
	}

	for i, row := range logits {
		y := labels[i]
		w := weights[y]
		p := Softmax(row)
		loss += -w * math.Log(math.Max(p[y], 1e-300))
		for c := range NumLabels {
			target := 0.0
			if c == y {
				target = 1
			}
			grad[i][c] = w * (p[c] - target) / norm
		}
	}
	return loss / norm, grad
}

// ClipNorm scales grad so its global L2 norm is at most maxNorm and returns
// the norm before clipping. maxNorm <= 0 leaves grad untouched.
func ClipNorm(grad [][NumLabels]float64, maxNorm float64) float64 {
	var sum float64
	for _, row := range grad {
		for _, g := range row {
			sum += g * g
		}
	}
	total := math.Sqrt(sum)
	if maxNorm <= 0 {
		return total
	}

	if coef := maxNorm / (total + 1e-6); coef < 1 {
		for i := range grad {
			for c := range grad[i] {
				grad[i][c] *= coef
			}
		}
	}
	return total
}
