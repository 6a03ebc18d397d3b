package darkscan

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jamesainslie/darkscan/artifact"
	"github.com/jamesainslie/darkscan/batch"
	"github.com/jamesainslie/darkscan/model"
	"github.com/jamesainslie/darkscan/sentence"
	"github.com/jamesainslie/darkscan/tokenizer"
)

// DetectionType is the Type of every Detection.
const DetectionType = "dark_pattern"

// Label is a predicted class.
type Label int

const (
	NotDark Label = 0
	Dark    Label = 1
)

func (l Label) String() string {
	if l == Dark {
		return artifact.LabelDark
	}
	return artifact.LabelNotDark
}

// Detection is a sentence scored at or above the decision threshold.
type Detection struct {
	Sentence    string  `json:"sentence"`
	Probability float64 `json:"probability"`
	Type        string  `json:"type"`
}

// Detector flags dark-pattern sentences with a trained classifier.
// It is safe for concurrent use.
type Detector struct {
	scorer    model.Scorer
	tokenizer tokenizer.Tokenizer
	encoder   *batch.Encoder
	meta      artifact.Meta
	threshold float64
	batchSize int
	logger    *zap.Logger
}

// Load opens the artifact directory written by training.
func Load(dir string, opts ...Option) (*Detector, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	meta, err := artifact.ReadMeta(dir)
	if err != nil {
		return nil, err
	}

	tok, err := tokenizer.Load(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenizerFailed, err)
	}

	scorer, err := artifact.LoadScorer(dir, artifact.Options{PoolSize: cfg.poolSize, Device: cfg.device})
	if err != nil {
		_ = tok.Close()
		if errors.Is(err, ErrArtifactMissing) || errors.Is(err, ErrInvalidModel) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	d, err := newDetector(scorer, tok, meta, cfg)
	if err != nil {
		_ = scorer.Close()
		_ = tok.Close()
		return nil, err
	}
	d.logger.Info("loaded detector",
		zap.String("dir", dir),
		zap.String("model", meta.ModelName),
		zap.String("device", scorer.Device()),
		zap.Int("max_len", meta.MaxLen),
		zap.Float64("threshold", d.threshold),
	)
	return d, nil
}

// New builds a Detector from already opened parts. The Detector takes
// ownership of scorer and tok.
func New(scorer model.Scorer, tok tokenizer.Tokenizer, meta artifact.Meta, opts ...Option) (*Detector, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if meta.MaxLen <= 0 {
		meta.MaxLen = artifact.DefaultMaxLen
	}
	return newDetector(scorer, tok, meta, cfg)
}

func newDetector(scorer model.Scorer, tok tokenizer.Tokenizer, meta artifact.Meta, cfg config) (*Detector, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if cfg.threshold != nil && !artifact.ValidThreshold(*cfg.threshold) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, *cfg.threshold)
	}

	enc, err := batch.NewEncoder(tok, meta.MaxLen)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidModel, err)
	}

	threshold, ok := meta.Threshold()
	switch {
	case cfg.threshold != nil:
		threshold = *cfg.threshold
	case !ok && cfg.strictThreshold:
		return nil, ErrThresholdMissing
	case !ok:
		cfg.logger.Warn("decision_threshold missing from metadata; using default",
			zap.Float64("threshold", threshold))
	}

	return &Detector{
		scorer:    scorer,
		tokenizer: tok,
		encoder:   enc,
		meta:      meta,
		threshold: threshold,
		batchSize: cfg.batchSize,
		logger:    cfg.logger,
	}, nil
}

// Threshold returns the decision threshold in use.
func (d *Detector) Threshold() float64 { return d.threshold }

// Meta returns the artifact metadata.
func (d *Detector) Meta() artifact.Meta { return d.meta }

// Device returns where scoring runs.
func (d *Detector) Device() string { return d.scorer.Device() }

// Score returns the positive-class probability of each text, in order.
func (d *Detector) Score(ctx context.Context, texts []string) ([]float64, error) {
	probs := make([]float64, 0, len(texts))
	for lo := 0; lo < len(texts); lo += d.batchSize {
		hi := min(lo+d.batchSize, len(texts))
		b, err := d.encoder.Encode(texts[lo:hi], nil, batch.PadMaxLength)
		if err != nil {
			return nil, err
		}
		logits, err := d.scorer.Logits(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("scoring: %w", err)
		}
		probs = append(probs, model.PositiveProbs(logits)...)
	}
	return probs, nil
}

// ScoreSentence returns the predicted label of a single sentence and its
// dark-pattern probability.
func (d *Detector) ScoreSentence(ctx context.Context, s string) (Label, float64, error) {
	probs, err := d.Score(ctx, []string{s})
	if err != nil {
		return NotDark, 0, err
	}
	if probs[0] >= d.threshold {
		return Dark, probs[0], nil
	}
	return NotDark, probs[0], nil
}

// Detect splits text into sentences and returns those scored at or above the
// threshold, in sentence order. Text without sentences yields no detections.
func (d *Detector) Detect(ctx context.Context, text string) ([]Detection, error) {
	sentences := sentence.Split(text)
	if len(sentences) == 0 {
		return []Detection{}, nil
	}

	probs, err := d.Score(ctx, sentences)
	if err != nil {
		return nil, err
	}

	detections := []Detection{}
	for i, s := range sentences {
		if probs[i] >= d.threshold {
			detections = append(detections, Detection{Sentence: s, Probability: probs[i], Type: DetectionType})
		}
	}
	d.logger.Debug("detected",
		zap.Int("sentences", len(sentences)),
		zap.Int("detections", len(detections)))
	return detections, nil
}

// Close releases all resources.
func (d *Detector) Close() error {
	var errs []error

	if d.scorer != nil {
		if err := d.scorer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if d.tokenizer != nil {
		if err := d.tokenizer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
