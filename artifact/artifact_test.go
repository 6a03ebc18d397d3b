package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/darkscan/batch"
	"github.com/jamesainslie/darkscan/model"
	"github.com/jamesainslie/darkscan/tokenizer"
)

func writeTestArtifact(t *testing.T, dir string, threshold float64) *model.Native {
	t.Helper()
	tok := tokenizer.BuildVocab([]string{"cancel anytime", "only 2 left in stock"}, 1, 0)
	nat, err := model.NewNative(model.NativeConfig{Rows: tok.VocabSize(), Dim: 4, Hidden: 3, Seed: 1})
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	if err := Write(dir, NewMeta("darkscan-native", 64, threshold), nat, tok); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return nat
}

func TestWriteLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	nat := writeTestArtifact(t, dir, 0.8194736842105263)

	meta, err := ReadMeta(dir)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	thr, ok := meta.Threshold()
	if !ok || thr != 0.8194736842105263 {
		t.Errorf("Threshold() = %v, %v; want exact round trip", thr, ok)
	}
	if meta.MaxLen != 64 {
		t.Errorf("MaxLen = %d, want 64", meta.MaxLen)
	}
	if meta.ID2Label[1] != LabelDark || meta.Label2ID[LabelNotDark] != 0 {
		t.Errorf("label maps = %v / %v", meta.ID2Label, meta.Label2ID)
	}

	tok, err := tokenizer.Load(dir)
	if err != nil {
		t.Fatalf("tokenizer.Load: %v", err)
	}
	scorer, err := LoadScorer(dir, Options{})
	if err != nil {
		t.Fatalf("LoadScorer: %v", err)
	}
	defer func() { _ = scorer.Close() }()
	if scorer.Device() != "cpu" {
		t.Errorf("Device() = %q, want cpu", scorer.Device())
	}

	enc, err := batch.NewEncoder(tok, meta.MaxLen)
	if err != nil {
		t.Fatalf("NewEncoder: %v", err)
	}
	b, err := enc.Encode([]string{"only 2 left"}, nil, batch.PadMaxLength)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want, _ := nat.Logits(context.Background(), b)
	got, err := scorer.Logits(context.Background(), b)
	if err != nil {
		t.Fatalf("Logits: %v", err)
	}
	if got[0] != want[0] {
		t.Errorf("reloaded logits %v, want %v", got[0], want[0])
	}
}

func TestWrite_MetaKeys(t *testing.T) {
	dir := t.TempDir()
	writeTestArtifact(t, dir, 0.9)

	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		t.Fatalf("reading meta: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("meta is not a JSON object: %v", err)
	}

	want := []string{"model_name", "max_len", "label2id", "id2label", "decision_threshold"}
	if len(raw) != len(want) {
		t.Errorf("meta has %d keys, want %d: %s", len(raw), len(want), data)
	}
	for _, k := range want {
		if _, ok := raw[k]; !ok {
			t.Errorf("meta missing key %q", k)
		}
	}
	if string(raw["id2label"]) == "" || string(raw["id2label"])[0] != '{' {
		t.Errorf("id2label = %s, want object", raw["id2label"])
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if e.Name() != MetaFile && filepath.Ext(e.Name()) != ".pb" && filepath.Ext(e.Name()) != ".json" {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestReadMeta_Errors(t *testing.T) {
	empty := t.TempDir()
	file := filepath.Join(t.TempDir(), "model")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		dir  string
		want error
	}{
		{"missing directory", filepath.Join(empty, "nope"), ErrFileNotFound},
		{"not a directory", file, ErrFileNotFound},
		{"missing meta", empty, ErrArtifactMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMeta(tt.dir)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestReadMeta_Invalid(t *testing.T) {
	labels := `"label2id": {"not_dark": 0, "dark": 1}, "id2label": {"0": "not_dark", "1": "dark"}`
	tests := []struct {
		name string
		meta string
	}{
		{"threshold above one", `{"decision_threshold": 1.5, ` + labels + `}`},
		{"negative threshold", `{"decision_threshold": -0.1, ` + labels + `}`},
		{"swapped label2id", `{"label2id": {"not_dark": 1, "dark": 0}, "id2label": {"0": "not_dark", "1": "dark"}}`},
		{"swapped id2label", `{"label2id": {"not_dark": 0, "dark": 1}, "id2label": {"0": "dark", "1": "not_dark"}}`},
		{"extra label", `{"label2id": {"not_dark": 0, "dark": 1, "maybe": 2}, "id2label": {"0": "not_dark", "1": "dark"}}`},
		{"missing labels", `{"decision_threshold": 0.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, MetaFile), []byte(tt.meta), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := ReadMeta(dir); !errors.Is(err, ErrInvalidMeta) {
				t.Errorf("expected ErrInvalidMeta, got %v", err)
			}
		})
	}
}

func TestReadMeta_Defaults(t *testing.T) {
	dir := t.TempDir()
	meta := `{"model_name": "roberta-base", "label2id": {"not_dark": 0, "dark": 1}, "id2label": {"0": "not_dark", "1": "dark"}}`
	if err := os.WriteFile(filepath.Join(dir, MetaFile), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := ReadMeta(dir)
	if err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if m.MaxLen != DefaultMaxLen {
		t.Errorf("MaxLen = %d, want %d", m.MaxLen, DefaultMaxLen)
	}
	if thr, ok := m.Threshold(); ok || thr != DefaultThreshold {
		t.Errorf("Threshold() = %v, %v; want default and false", thr, ok)
	}
	if m.ID2Label[0] != LabelNotDark {
		t.Errorf("ID2Label[0] = %q", m.ID2Label[0])
	}
}

func TestLoadScorer_MissingWeights(t *testing.T) {
	if _, err := LoadScorer(t.TempDir(), Options{}); !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("expected ErrArtifactMissing, got %v", err)
	}
}

type failingSaver struct{}

func (failingSaver) Save(string) error { return errors.New("disk full") }

func TestWrite_FailureLeavesNoMeta(t *testing.T) {
	dir := t.TempDir()
	writeTestArtifact(t, dir, 0.7)

	tok := tokenizer.BuildVocab([]string{"x"}, 1, 0)
	if err := Write(dir, NewMeta("x", 32, 0.6), failingSaver{}, tok); err == nil {
		t.Fatal("expected error from failing weights")
	}
	if _, err := ReadMeta(dir); !errors.Is(err, ErrArtifactMissing) {
		t.Errorf("expected ErrArtifactMissing after failed write, got %v", err)
	}
}
