package tokenizer

import (
	"os"
	"path/filepath"
	"testing"
)

// testModel is a tiny unigram vocabulary laid out like XLM-RoBERTa:
// <unk>, <s>, </s> first, then normal pieces.
func testModel() *Model {
	return &Model{
		ModelType: ModelUnigram,
		Pieces: []Piece{
			{Piece: "<unk>", Score: 0, Type: PieceUnknown},
			{Piece: "<s>", Score: 0, Type: PieceControl},
			{Piece: "</s>", Score: 0, Type: PieceControl},
			{Piece: "▁", Score: -5, Type: PieceNormal},
			{Piece: "▁free", Score: -2, Type: PieceNormal},
			{Piece: "▁trial", Score: -2, Type: PieceNormal},
			{Piece: "▁fr", Score: -3, Type: PieceNormal},
			{Piece: "ee", Score: -3, Type: PieceNormal},
			{Piece: "!", Score: -1, Type: PieceNormal},
			{Piece: "a", Score: -4, Type: PieceNormal},
		},
	}
}

func writeTestModel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.model")
	if err := os.WriteFile(path, MarshalModel(testModel()), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadModel(t *testing.T) {
	model, err := LoadModel(writeTestModel(t))
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}

	want := testModel()
	if len(model.Pieces) != len(want.Pieces) {
		t.Fatalf("expected %d pieces, got %d", len(want.Pieces), len(model.Pieces))
	}
	for i := range want.Pieces {
		if model.Pieces[i] != want.Pieces[i] {
			t.Errorf("piece[%d] = %+v, want %+v", i, model.Pieces[i], want.Pieces[i])
		}
	}
	if model.ModelType != ModelUnigram {
		t.Errorf("expected UNIGRAM model type, got %v", model.ModelType)
	}
}

func TestLoadModel_FileNotFound(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "nonexistent.model"))
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadModel_InvalidProtobuf(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.model")
	if err := os.WriteFile(path, []byte(`{"not":"protobuf"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadModel(path)
	if err == nil {
		t.Error("expected error for invalid protobuf data")
	}
}

func TestNewUnigram_RejectsBPE(t *testing.T) {
	m := testModel()
	m.ModelType = ModelBPE
	path := filepath.Join(t.TempDir(), "bpe.model")
	if err := os.WriteFile(path, MarshalModel(m), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewUnigram(path); err == nil {
		t.Error("expected error for BPE model type")
	}
}
