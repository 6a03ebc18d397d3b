package model

import (
	"context"
	"fmt"

	"github.com/jamesainslie/darkscan/batch"
	"github.com/jamesainslie/darkscan/inference"
)

// ONNXFile is the file name of an exported classifier inside an artifact.
const ONNXFile = "model.onnx"

// ONNX scores batches with a pool of ONNX Runtime sessions. It serves
// transformer checkpoints exported with two logits per row; it cannot be
// trained.
type ONNX struct {
	pool *inference.Pool
}

// NewONNX opens poolSize sessions of the model at path on device.
func NewONNX(path string, poolSize int, device inference.Device) (*ONNX, error) {
	pool, err := inference.NewPool(path, poolSize, device)
	if err != nil {
		return nil, fmt.Errorf("creating session pool: %w", err)
	}
	return &ONNX{pool: pool}, nil
}

// Logits runs the batch through one pooled session.
func (o *ONNX) Logits(ctx context.Context, b *batch.Batch) ([][NumLabels]float64, error) {
	rows, seqLen := b.Len(), b.SeqLen()
	if rows == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, rows*seqLen)
	mask := make([]int64, 0, rows*seqLen)
	for i := range rows {
		ids = append(ids, b.TokenIDs[i]...)
		mask = append(mask, b.AttentionMask[i]...)
	}

	raw, err := o.pool.Classify(ctx, ids, mask, rows, seqLen)
	if err != nil {
		return nil, err
	}

	out := make([][NumLabels]float64, rows)
	for i, row := range raw {
		if len(row) != NumLabels {
			return nil, fmt.Errorf("%w: expected %d logits per row, got %d", ErrInvalidModel, NumLabels, len(row))
		}
		for c, v := range row {
			out[i][c] = float64(v)
		}
	}
	return out, nil
}

// Device returns the execution provider the sessions run on.
func (o *ONNX) Device() string { return o.pool.Device() }

// Close releases every session.
func (o *ONNX) Close() error { return o.pool.Close() }
