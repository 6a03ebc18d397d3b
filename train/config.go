package train

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/darkscan/model"
)

// Config holds every setting of a training run. Nothing is read from global
// state, so independent runs can proceed in parallel.
type Config struct {
	DataPath  string `yaml:"data_path"`
	OutputDir string `yaml:"output_dir"`
	// Tokenizer is a tokenizer.json, sentencepiece model or vocab.json to
	// train with. When empty a word vocabulary is built from the training
	// split.
	Tokenizer string `yaml:"tokenizer"`
	ModelName string `yaml:"model_name"`

	Seed         uint64  `yaml:"seed"`
	MaxLen       int     `yaml:"max_len"`
	BatchSize    int     `yaml:"batch_size"`
	Epochs       int     `yaml:"epochs"`
	LearningRate float64 `yaml:"learning_rate"`
	WarmupRatio  float64 `yaml:"warmup_ratio"`
	WeightDecay  float64 `yaml:"weight_decay"`
	ClipNorm     float64 `yaml:"clip_norm"`
	ValFraction  float64 `yaml:"val_fraction"`
	VocabMinFreq int     `yaml:"vocab_min_freq"`
	VocabMaxSize int     `yaml:"vocab_max_size"`

	Native model.NativeConfig `yaml:"native"`
}

// DefaultConfig returns the settings used for the published model.
func DefaultConfig() Config {
	return Config{
		DataPath:     "dataset.csv",
		OutputDir:    "dark_pattern_model",
		ModelName:    "darkscan-native",
		Seed:         42,
		MaxLen:       256,
		BatchSize:    8,
		Epochs:       4,
		LearningRate: 0.1,
		WarmupRatio:  0.1,
		WeightDecay:  0.01,
		ClipNorm:     1.0,
		ValFraction:  0.15,
		VocabMinFreq: 1,
		VocabMaxSize: 30000,
		Native:       model.DefaultNativeConfig(),
	}
}

// LoadConfig reads a YAML file over DefaultConfig. Keys absent from the file
// keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot produce a run.
func (c Config) Validate() error {
	var errs []error
	if c.DataPath == "" {
		errs = append(errs, errors.New("data_path is required"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	if c.MaxLen < 2 {
		errs = append(errs, fmt.Errorf("max_len %d must be at least 2", c.MaxLen))
	}
	if c.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("batch_size %d must be positive", c.BatchSize))
	}
	if c.Epochs < 1 {
		errs = append(errs, fmt.Errorf("epochs %d must be positive", c.Epochs))
	}
	if c.LearningRate <= 0 {
		errs = append(errs, fmt.Errorf("learning_rate %v must be positive", c.LearningRate))
	}
	if c.WarmupRatio < 0 || c.WarmupRatio > 1 {
		errs = append(errs, fmt.Errorf("warmup_ratio %v outside [0, 1]", c.WarmupRatio))
	}
	if c.ValFraction <= 0 || c.ValFraction >= 1 {
		errs = append(errs, fmt.Errorf("val_fraction %v outside (0, 1)", c.ValFraction))
	}
	return errors.Join(errs...)
}
