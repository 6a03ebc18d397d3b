package inference

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

// <s> free trial </s> with XLM-R style ids
var (
	sampleIDs  = []int64{0, 4092, 76811, 2}
	sampleMask = []int64{1, 1, 1, 1}
)

func TestNewSession_FileNotFound(t *testing.T) {
	_, err := NewSession("../testdata/nonexistent.onnx", CPU())
	if err == nil {
		t.Fatal("expected error for non-existent file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got: %v", err)
	}
}

func TestSession_Classify(t *testing.T) {
	session := newTestSession(t)
	defer func() { _ = session.Close() }()

	if session.Device() != "cpu" {
		t.Errorf("Device() = %q, want cpu", session.Device())
	}

	ids := append(append([]int64{}, sampleIDs...), sampleIDs...)
	mask := append(append([]int64{}, sampleMask...), sampleMask...)

	logits, err := session.Classify(context.Background(), ids, mask, 2, len(sampleIDs))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if len(logits) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(logits))
	}
	if len(logits[0]) != 2 {
		t.Errorf("expected 2 labels per row, got %d", len(logits[0]))
	}
	for j := range logits[0] {
		if logits[0][j] != logits[1][j] {
			t.Errorf("identical rows differ at %d: %v vs %v", j, logits[0][j], logits[1][j])
		}
	}
}

func TestSession_Classify_ShapeMismatch(t *testing.T) {
	session := newTestSession(t)
	defer func() { _ = session.Close() }()

	_, err := session.Classify(context.Background(), sampleIDs, sampleMask, 2, len(sampleIDs))
	if err == nil {
		t.Error("expected error for mismatched shape")
	}
}

func TestSession_Classify_Context(t *testing.T) {
	session := newTestSession(t)
	defer func() { _ = session.Close() }()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	expired, cancel2 := context.WithTimeout(context.Background(), -time.Second)
	defer cancel2()

	tests := []struct {
		name string
		ctx  context.Context
		want error
	}{
		{"cancelled", cancelled, context.Canceled},
		{"expired", expired, context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := session.Classify(tt.ctx, sampleIDs, sampleMask, 1, len(sampleIDs))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got: %v", tt.want, err)
			}
		})
	}
}

func TestSession_Close_Idempotent(t *testing.T) {
	session := newTestSession(t)

	if err := session.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	_, err := session.Classify(context.Background(), sampleIDs, sampleMask, 1, len(sampleIDs))
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}
