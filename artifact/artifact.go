// Package artifact reads and writes the directory that carries a trained
// classifier: weights, tokenizer state and meta.json.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jamesainslie/darkscan/inference"
	"github.com/jamesainslie/darkscan/model"
)

// MetaFile is the metadata file name. Its presence marks a complete artifact.
const MetaFile = "meta.json"

const (
	// DefaultThreshold is used when meta.json carries no decision threshold.
	DefaultThreshold = 0.5
	// DefaultMaxLen is used when meta.json carries no max_len.
	DefaultMaxLen = 256
)

// Label names.
const (
	LabelNotDark = "not_dark"
	LabelDark    = "dark"
)

var (
	// ErrFileNotFound indicates the artifact directory does not exist.
	ErrFileNotFound = errors.New("artifact: directory not found")

	// ErrArtifactMissing indicates the directory exists but meta.json or the
	// weights are absent.
	ErrArtifactMissing = errors.New("artifact: missing metadata or weights")

	// ErrInvalidMeta indicates meta.json is readable but its values are
	// unusable.
	ErrInvalidMeta = errors.New("artifact: invalid metadata")
)

// Meta is the content of meta.json.
type Meta struct {
	ModelName string         `json:"model_name"`
	MaxLen    int            `json:"max_len"`
	Label2ID  map[string]int `json:"label2id"`
	ID2Label  map[int]string `json:"id2label"`
	// DecisionThreshold is nil when the file has no threshold.
	DecisionThreshold *float64 `json:"decision_threshold"`
}

// NewMeta returns metadata with the fixed two-label maps.
func NewMeta(modelName string, maxLen int, threshold float64) Meta {
	return Meta{
		ModelName:         modelName,
		MaxLen:            maxLen,
		Label2ID:          map[string]int{LabelNotDark: 0, LabelDark: 1},
		ID2Label:          map[int]string{0: LabelNotDark, 1: LabelDark},
		DecisionThreshold: &threshold,
	}
}

// Threshold returns the decision threshold and whether meta.json set it.
func (m Meta) Threshold() (float64, bool) {
	if m.DecisionThreshold == nil {
		return DefaultThreshold, false
	}
	return *m.DecisionThreshold, true
}

// ValidThreshold reports whether t is a usable decision threshold.
func ValidThreshold(t float64) bool {
	return t >= 0 && t <= 1
}

// Validate checks the threshold range and that the label maps are exactly
// not_dark=0 and dark=1.
func (m Meta) Validate() error {
	if t, ok := m.Threshold(); ok && !ValidThreshold(t) {
		return fmt.Errorf("%w: decision_threshold %v outside [0, 1]", ErrInvalidMeta, t)
	}
	if len(m.Label2ID) != 2 || m.Label2ID[LabelNotDark] != 0 || m.Label2ID[LabelDark] != 1 {
		return fmt.Errorf("%w: label2id %v, want {%s: 0, %s: 1}", ErrInvalidMeta, m.Label2ID, LabelNotDark, LabelDark)
	}
	if len(m.ID2Label) != 2 || m.ID2Label[0] != LabelNotDark || m.ID2Label[1] != LabelDark {
		return fmt.Errorf("%w: id2label %v, want {0: %s, 1: %s}", ErrInvalidMeta, m.ID2Label, LabelNotDark, LabelDark)
	}
	return nil
}

// Saver persists its state into a directory.
type Saver interface {
	Save(dir string) error
}

// Write stores weights, tokenizer and meta.json in dir. meta.json goes last
// through a temporary file and rename, so a directory without it was never
// completely written.
func Write(dir string, meta Meta, weights, tok Saver) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	// a stale meta.json would bless the half-written files below
	if err := os.Remove(filepath.Join(dir, MetaFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing old metadata: %w", err)
	}

	if err := weights.Save(dir); err != nil {
		return fmt.Errorf("saving weights: %w", err)
	}
	if err := tok.Save(dir); err != nil {
		return fmt.Errorf("saving tokenizer: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	tmp, err := os.CreateTemp(dir, MetaFile+".*")
	if err != nil {
		return fmt.Errorf("creating metadata: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing metadata: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, MetaFile)); err != nil {
		return fmt.Errorf("committing metadata: %w", err)
	}
	return nil
}

// ReadMeta loads and validates meta.json from dir. A zero max_len reads as
// DefaultMaxLen.
func ReadMeta(dir string) (Meta, error) {
	if err := checkDir(dir); err != nil {
		return Meta{}, err
	}

	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if errors.Is(err, os.ErrNotExist) {
		return Meta{}, fmt.Errorf("%w: no %s in %s", ErrArtifactMissing, MetaFile, dir)
	}
	if err != nil {
		return Meta{}, fmt.Errorf("reading metadata: %w", err)
	}

	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return Meta{}, fmt.Errorf("parsing %s: %w", MetaFile, err)
	}
	if err := meta.Validate(); err != nil {
		return Meta{}, fmt.Errorf("%s: %w", MetaFile, err)
	}
	if meta.MaxLen <= 0 {
		meta.MaxLen = DefaultMaxLen
	}
	return meta, nil
}

func checkDir(dir string) error {
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, dir)
	}
	if err != nil {
		return fmt.Errorf("artifact directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrFileNotFound, dir)
	}
	return nil
}

// Options tune how weights are opened.
type Options struct {
	// PoolSize is the number of ONNX sessions. Ignored for native weights.
	PoolSize int
	// Device selects the ONNX execution provider. Ignored for native weights.
	Device inference.Device
}

// LoadScorer opens the weights in dir. model.onnx is preferred over
// weights.pb when both exist.
func LoadScorer(dir string, opts Options) (model.Scorer, error) {
	if path := filepath.Join(dir, model.ONNXFile); fileExists(path) {
		return model.NewONNX(path, opts.PoolSize, opts.Device)
	}
	if path := filepath.Join(dir, model.WeightsFile); fileExists(path) {
		return model.LoadNative(path)
	}
	return nil, fmt.Errorf("%w: no %s or %s in %s", ErrArtifactMissing, model.ONNXFile, model.WeightsFile, dir)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
