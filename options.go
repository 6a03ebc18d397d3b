package darkscan

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/jamesainslie/darkscan/inference"
)

// Option configures a Detector.
type Option func(*config)

type config struct {
	threshold       *float64
	strictThreshold bool
	poolSize        int
	batchSize       int
	device          inference.Device
	logger          *zap.Logger
}

func defaultConfig() config {
	return config{
		poolSize:  runtime.NumCPU(),
		batchSize: 16,
		device:    inference.Auto(),
		logger:    zap.NewNop(),
	}
}

// WithThreshold overrides the decision threshold stored in meta.json.
// Values outside [0, 1] make Load and New fail with ErrInvalidThreshold.
func WithThreshold(t float64) Option {
	return func(c *config) {
		c.threshold = &t
	}
}

// WithStrictThreshold makes Load fail with ErrThresholdMissing instead of
// falling back to 0.5 when meta.json has no decision threshold.
func WithStrictThreshold() Option {
	return func(c *config) {
		c.strictThreshold = true
	}
}

// WithPoolSize sets the ONNX session pool size (default: runtime.NumCPU()).
func WithPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithBatchSize sets how many sentences are scored per forward pass
// (default: 16).
func WithBatchSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithDevice sets the ONNX execution provider (default: inference.Auto()).
// Native weights always run on the CPU.
func WithDevice(d inference.Device) Option {
	return func(c *config) {
		if d != nil {
			c.device = d
		}
	}
}

// WithLogger sets the logger (default: no-op).
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
