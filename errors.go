package darkscan

import (
	"errors"

	"github.com/jamesainslie/darkscan/artifact"
	"github.com/jamesainslie/darkscan/model"
)

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrFileNotFound indicates the artifact directory does not exist.
	ErrFileNotFound = artifact.ErrFileNotFound

	// ErrArtifactMissing indicates meta.json or the weights are absent.
	ErrArtifactMissing = artifact.ErrArtifactMissing

	// ErrInvalidMeta indicates meta.json has an out-of-range threshold or
	// unexpected label maps.
	ErrInvalidMeta = artifact.ErrInvalidMeta

	// ErrInvalidModel indicates the weights exist but cannot be used.
	ErrInvalidModel = model.ErrInvalidModel

	// ErrTokenizerFailed indicates tokenizer initialization failed.
	ErrTokenizerFailed = errors.New("darkscan: tokenizer initialization failed")

	// ErrThresholdMissing is returned under WithStrictThreshold when
	// meta.json carries no decision threshold.
	ErrThresholdMissing = errors.New("darkscan: decision threshold missing")

	// ErrInvalidThreshold is returned when WithThreshold is given a value
	// outside [0, 1].
	ErrInvalidThreshold = errors.New("darkscan: decision threshold outside [0, 1]")
)
