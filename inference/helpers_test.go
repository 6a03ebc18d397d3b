package inference

import (
	"os"
	"strings"
	"testing"
)

// testModelPath returns a sequence-classification ONNX model for tests or
// skips. DARKSCAN_ONNX_MODEL overrides the default location.
func testModelPath(t *testing.T) string {
	t.Helper()
	modelPath := os.Getenv("DARKSCAN_ONNX_MODEL")
	if modelPath == "" {
		modelPath = "../testdata/classifier.onnx"
	}
	if _, err := os.Stat(modelPath); err != nil {
		t.Skipf("Skipping: model not available at %s", modelPath)
	}
	return modelPath
}

// isORTUnavailableError checks if the error indicates ONNX runtime is not available.
func isORTUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "onnxruntime") ||
		strings.Contains(errStr, "shared library") ||
		strings.Contains(errStr, "dylib") ||
		strings.Contains(errStr, ".so") ||
		strings.Contains(errStr, ".dll") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "cannot open") ||
		strings.Contains(errStr, "initializing ONNX runtime")
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	session, err := NewSession(testModelPath(t), CPU())
	if err != nil {
		if isORTUnavailableError(err) {
			t.Skipf("Skipping: ONNX runtime not available: %v", err)
		}
		t.Fatalf("NewSession failed: %v", err)
	}
	return session
}

func newTestPool(t *testing.T, size int) *Pool {
	t.Helper()
	pool, err := NewPool(testModelPath(t), size, CPU())
	if err != nil {
		if isORTUnavailableError(err) {
			t.Skipf("Skipping: ONNX runtime not available: %v", err)
		}
		t.Fatalf("NewPool failed: %v", err)
	}
	return pool
}
