// Package inference provides ONNX Runtime integration for sequence
// classification models exported from the transformers library.
package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// initORT initializes ONNX Runtime environment once.
func initORT() error {
	ortEnvOnce.Do(func() {
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// Session wraps an ONNX Runtime session for a sequence classifier with inputs
// input_ids and attention_mask and a [batch, labels] logits output.
type Session struct {
	session *ort.DynamicAdvancedSession
	device  string
	mu      sync.Mutex
	closed  bool
}

// NewSession creates a new ONNX session from a model file on device.
func NewSession(modelPath string, device Device) (*Session, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}
	if device == nil {
		device = CPU()
	}

	var errs []error
	for _, p := range device.candidates() {
		session, err := newSession(modelPath, p)
		if err == nil {
			return &Session{session: session, device: p.name()}, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", p.name(), err))
	}
	return nil, fmt.Errorf("creating session: %w", errors.Join(errs...))
}

func newSession(modelPath string, p provider) (*ort.DynamicAdvancedSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if err := p.apply(options); err != nil {
		return nil, err
	}

	return ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask"},
		[]string{"logits"},
		options,
	)
}

// Device returns the execution provider the session runs on.
func (s *Session) Device() string { return s.device }

// Classify runs the model on a row-major [batchSize, seqLen] batch and returns
// one logits row per input row.
func (s *Session) Classify(ctx context.Context, inputIDs, attentionMask []int64, batchSize, seqLen int) ([][]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if len(inputIDs) != batchSize*seqLen || len(attentionMask) != batchSize*seqLen {
		return nil, fmt.Errorf("input size %d/%d does not match shape %dx%d",
			len(inputIDs), len(attentionMask), batchSize, seqLen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	shape := ort.NewShape(int64(batchSize), int64(seqLen))
	inputIDsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("creating input_ids tensor: %w", err)
	}
	defer func() { _ = inputIDsTensor.Destroy() }()

	attentionMaskTensor, err := ort.NewTensor(shape, attentionMask)
	if err != nil {
		return nil, fmt.Errorf("creating attention_mask tensor: %w", err)
	}
	defer func() { _ = attentionMaskTensor.Destroy() }()

	// nil outputs are allocated by Run
	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{inputIDsTensor, attentionMaskTensor}, outputs); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}
	if outputs[0] == nil {
		return nil, fmt.Errorf("no output produced")
	}
	defer func() { _ = outputs[0].Destroy() }()

	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	outShape := logitsTensor.GetShape()
	if len(outShape) != 2 || outShape[0] != int64(batchSize) {
		return nil, fmt.Errorf("unexpected logits shape %v", outShape)
	}
	width := int(outShape[1])
	data := logitsTensor.GetData()

	logits := make([][]float32, batchSize)
	for i := range logits {
		logits[i] = append([]float32(nil), data[i*width:(i+1)*width]...)
	}
	return logits, nil
}

// Close releases ONNX resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
