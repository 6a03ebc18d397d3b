package train

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jamesainslie/darkscan/artifact"
	"github.com/jamesainslie/darkscan/batch"
	"github.com/jamesainslie/darkscan/dataset"
	"github.com/jamesainslie/darkscan/internal/calibrate"
	"github.com/jamesainslie/darkscan/model"
	"github.com/jamesainslie/darkscan/tokenizer"
)

// Summary describes a finished run.
type Summary struct {
	OutputDir   string
	Threshold   float64
	Calibration calibrate.Result
	Fit         *Result
}

// Run executes the whole training phase: load and split the dataset, build
// the tokenizer and model, fit, calibrate the decision threshold and write
// the artifact to cfg.OutputDir. Any error aborts the run before meta.json is
// written.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) (*Summary, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	ds, err := dataset.Load(cfg.DataPath, logger)
	if err != nil {
		return nil, err
	}
	trainSet, valSet, err := ds.Split(cfg.ValFraction, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("splitting dataset: %w", err)
	}
	logger.Info("split dataset",
		zap.Int("train", len(trainSet)),
		zap.Int("validation", len(valSet)),
		zap.Ints("train_counts", countsSlice(trainSet)),
		zap.Ints("validation_counts", countsSlice(valSet)),
	)

	tok, err := buildTokenizer(cfg, trainSet)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tok.Close() }()
	logger.Info("tokenizer ready", zap.Int("vocab_size", tok.VocabSize()))

	enc, err := batch.NewEncoder(tok, cfg.MaxLen)
	if err != nil {
		return nil, err
	}

	nc := cfg.Native
	if nc.Rows <= 0 || nc.Rows > tok.VocabSize() {
		nc.Rows = tok.VocabSize()
	}
	nc.Seed = cfg.Seed
	clf, err := model.NewNative(nc)
	if err != nil {
		return nil, err
	}

	weights, err := ClassWeights(ds.Examples)
	if err != nil {
		return nil, err
	}

	fit, err := NewTrainer(cfg, clf, enc, logger).Fit(ctx, trainSet, valSet, weights)
	if err != nil {
		return nil, fmt.Errorf("training: %w", err)
	}

	cal, err := calibrate.Calibrate(fit.ValProbs, fit.ValLabels)
	if err != nil {
		return nil, fmt.Errorf("calibrating threshold: %w", err)
	}
	for _, row := range cal.Table {
		logger.Info("threshold",
			zap.Float64("thr", row.Threshold),
			zap.Float64("precision", row.Metrics.Precision),
			zap.Float64("recall", row.Metrics.Recall),
			zap.Float64("f1", row.Metrics.F1),
			zap.Int("fp", row.Metrics.FalsePositives),
			zap.Int("fn", row.Metrics.FalseNegatives),
		)
	}
	logger.Info("selected decision threshold",
		zap.Float64("threshold", cal.Threshold),
		zap.Bool("zero_false_positives", cal.ZeroFalsePositives),
	)

	meta := artifact.NewMeta(cfg.ModelName, cfg.MaxLen, cal.Threshold)
	if err := artifact.Write(cfg.OutputDir, meta, clf, tok); err != nil {
		return nil, err
	}
	logger.Info("saved artifact", zap.String("dir", cfg.OutputDir))

	return &Summary{
		OutputDir:   cfg.OutputDir,
		Threshold:   cal.Threshold,
		Calibration: cal,
		Fit:         fit,
	}, nil
}

func buildTokenizer(cfg Config, trainSet []dataset.Example) (tokenizer.Tokenizer, error) {
	if cfg.Tokenizer != "" {
		tok, err := tokenizer.Open(cfg.Tokenizer)
		if err != nil {
			return nil, fmt.Errorf("opening tokenizer: %w", err)
		}
		return tok, nil
	}

	texts := make([]string, len(trainSet))
	for i, ex := range trainSet {
		texts[i] = ex.Text
	}
	return tokenizer.BuildVocab(texts, cfg.VocabMinFreq, cfg.VocabMaxSize), nil
}

func countsSlice(examples []dataset.Example) []int {
	c := dataset.CountLabels(examples)
	return c[:]
}
