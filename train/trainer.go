// Package train fits a dark-pattern sentence classifier and writes the
// artifact served by darkscan.Load.
package train

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/jamesainslie/darkscan/batch"
	"github.com/jamesainslie/darkscan/dataset"
	"github.com/jamesainslie/darkscan/internal/calibrate"
	"github.com/jamesainslie/darkscan/model"
)

// ValidationCutoff is the probability cutoff used for per-epoch validation.
const ValidationCutoff = 0.5

// Checkpoint is the best parameter snapshot seen so far.
type Checkpoint struct {
	Weights model.Snapshot
	Epoch   int
	F1      float64
}

// better reports whether an epoch scoring f1 replaces best. The initial bar
// is an F1 of 0 and ties keep the earlier checkpoint.
func better(best *Checkpoint, f1 float64) bool {
	bar := 0.0
	if best != nil {
		bar = best.F1
	}
	return f1 > bar
}

// EpochReport summarizes one epoch.
type EpochReport struct {
	Epoch     int
	TrainLoss float64
	ValLoss   float64
	Val       calibrate.Metrics
}

// Result is the outcome of Fit. The model holds the Best weights, or the last
// epoch's when Best is nil.
type Result struct {
	Best   *Checkpoint
	Epochs []EpochReport
	// ValProbs are positive-class probabilities of the returned model on the
	// validation split, aligned with ValLabels.
	ValProbs  []float64
	ValLabels []int
}

// Trainer runs the epoch loop. It is single-threaded and not safe for
// concurrent use.
type Trainer struct {
	cfg     Config
	model   model.Trainable
	encoder *batch.Encoder
	logger  *zap.Logger
}

// NewTrainer returns a trainer updating m in place.
func NewTrainer(cfg Config, m model.Trainable, enc *batch.Encoder, logger *zap.Logger) *Trainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{cfg: cfg, model: m, encoder: enc, logger: logger}
}

// ClassWeights returns "balanced" weights n / (2 * count_c).
func ClassWeights(examples []dataset.Example) ([model.NumLabels]float64, error) {
	counts := dataset.CountLabels(examples)
	var w [model.NumLabels]float64
	for c, count := range counts {
		if count == 0 {
			return w, fmt.Errorf("%w: no examples with label %d", dataset.ErrDataInvariant, c)
		}
		w[c] = float64(len(examples)) / float64(model.NumLabels*count)
	}
	return w, nil
}

// Steps returns the number of optimizer steps for n training examples.
func (t *Trainer) Steps(n int) int {
	return t.cfg.Epochs * ((n + t.cfg.BatchSize - 1) / t.cfg.BatchSize)
}

// Fit trains on trainSet, validating on valSet after every epoch, and leaves
// the best checkpoint in the model.
func (t *Trainer) Fit(ctx context.Context, trainSet, valSet []dataset.Example, classWeights [model.NumLabels]float64) (*Result, error) {
	if len(trainSet) == 0 || len(valSet) == 0 {
		return nil, errors.New("train and validation sets must be non-empty")
	}

	sched := NewLinearSchedule(t.cfg.LearningRate, t.Steps(len(trainSet)), t.cfg.WarmupRatio)

	t.logger.Info("training",
		zap.Int("train", len(trainSet)),
		zap.Int("validation", len(valSet)),
		zap.Int("epochs", t.cfg.Epochs),
		zap.Int("steps", sched.Total),
		zap.Int("warmup_steps", sched.Warmup),
		zap.Float64s("class_weights", classWeights[:]),
		zap.String("device", t.model.Device()),
	)

	res := &Result{}
	step := 0
	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()
		order := rand.New(rand.NewPCG(t.cfg.Seed, uint64(epoch))).Perm(len(trainSet))

		var running float64
		batches := 0
		for lo := 0; lo < len(order); lo += t.cfg.BatchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			hi := min(lo+t.cfg.BatchSize, len(order))
			b, err := t.encode(trainSet, order[lo:hi])
			if err != nil {
				return nil, err
			}

			loss, err := t.model.TrainBatch(b, classWeights, model.Step{
				LearningRate: sched.Rate(step),
				WeightDecay:  t.cfg.WeightDecay,
				ClipNorm:     t.cfg.ClipNorm,
			})
			if err != nil {
				return nil, fmt.Errorf("epoch %d step %d: %w", epoch, step, err)
			}
			step++

			running += loss
			batches++
			t.logger.Debug("step", zap.Int("step", step), zap.Float64("loss", loss))
		}

		valLoss, probs, labels, err := t.Evaluate(ctx, valSet, classWeights)
		if err != nil {
			return nil, fmt.Errorf("epoch %d validation: %w", epoch, err)
		}
		report := EpochReport{
			Epoch:     epoch,
			TrainLoss: running / float64(batches),
			ValLoss:   valLoss,
			Val:       calibrate.Evaluate(probs, labels, ValidationCutoff),
		}
		res.Epochs = append(res.Epochs, report)

		t.logger.Info("epoch",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", report.TrainLoss),
			zap.Float64("val_loss", report.ValLoss),
			zap.Float64("val_precision", report.Val.Precision),
			zap.Float64("val_recall", report.Val.Recall),
			zap.Float64("val_f1", report.Val.F1),
			zap.Int("tp", report.Val.TruePositives),
			zap.Int("fp", report.Val.FalsePositives),
			zap.Int("tn", report.Val.TrueNegatives),
			zap.Int("fn", report.Val.FalseNegatives),
			zap.Duration("elapsed", time.Since(start)),
		)

		if better(res.Best, report.Val.F1) {
			res.Best = &Checkpoint{Weights: t.model.Snapshot(), Epoch: epoch, F1: report.Val.F1}
			t.logger.Info("new best checkpoint", zap.Int("epoch", epoch), zap.Float64("f1", report.Val.F1))
		}
	}

	if res.Best != nil {
		if err := t.model.Restore(res.Best.Weights); err != nil {
			return nil, fmt.Errorf("restoring best checkpoint: %w", err)
		}
	} else {
		t.logger.Warn("no epoch reached a positive validation F1; keeping last epoch weights")
	}

	var err error
	_, res.ValProbs, res.ValLabels, err = t.Evaluate(ctx, valSet, classWeights)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Evaluate scores examples in order and returns the mean per-batch weighted
// loss with positive-class probabilities and labels.
func (t *Trainer) Evaluate(ctx context.Context, examples []dataset.Example, classWeights [model.NumLabels]float64) (float64, []float64, []int, error) {
	idx := make([]int, len(examples))
	for i := range idx {
		idx[i] = i
	}

	probs := make([]float64, 0, len(examples))
	labels := make([]int, 0, len(examples))
	var total float64
	batches := 0
	for lo := 0; lo < len(idx); lo += t.cfg.BatchSize {
		hi := min(lo+t.cfg.BatchSize, len(idx))
		b, err := t.encode(examples, idx[lo:hi])
		if err != nil {
			return 0, nil, nil, err
		}
		logits, err := t.model.Logits(ctx, b)
		if err != nil {
			return 0, nil, nil, err
		}
		loss, _ := model.WeightedCrossEntropy(logits, b.Labels, classWeights)
		total += loss
		batches++
		probs = append(probs, model.PositiveProbs(logits)...)
		labels = append(labels, b.Labels...)
	}
	if batches == 0 {
		return 0, probs, labels, nil
	}
	return total / float64(batches), probs, labels, nil
}

func (t *Trainer) encode(examples []dataset.Example, idx []int) (*batch.Batch, error) {
	texts := make([]string, len(idx))
	labels := make([]int, len(idx))
	for i, j := range idx {
		texts[i] = examples[j].Text
		labels[i] = examples[j].Label
	}
	return t.encoder.Encode(texts, labels, batch.PadLongest)
}
