package dataset

import "errors"

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrFileNotFound indicates the dataset file does not exist.
	ErrFileNotFound = errors.New("dataset: file not found")

	// ErrSchema indicates no usable text or label column was found.
	ErrSchema = errors.New("dataset: no usable column")

	// ErrDataInvariant indicates normalized labels are not exactly {0, 1}.
	ErrDataInvariant = errors.New("dataset: labels must be 0/1")
)
