// Package tokenizer turns text into model token IDs.
//
// Three backends share the Tokenizer interface:
//   - Unigram: XLM-RoBERTa compatible SentencePiece (sentencepiece.bpe.model)
//   - HF: HuggingFace tokenizer.json (RoBERTa BPE and friends)
//   - Vocab: word-level vocabulary built from the training corpus (vocab.json)
//
// Load picks the backend from the files present in an artifact directory.
package tokenizer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Tokenizer converts text to token IDs without special tokens.
// Implementations are safe for concurrent use once constructed.
type Tokenizer interface {
	EncodeIDs(text string) []int32
	VocabSize() int
	BOSID() int32
	EOSID() int32
	PadID() int32
	// Save writes the tokenizer state into dir under its canonical file name.
	Save(dir string) error
	Close() error
}

// ErrEncode indicates a backend could not encode a text.
var ErrEncode = errors.New("tokenizer: encode failed")

// CheckedEncoder is implemented by backends whose encoding can fail. Their
// EncodeIDs returns nil on failure; EncodeIDsChecked reports why.
type CheckedEncoder interface {
	EncodeIDsChecked(text string) ([]int32, error)
}

// Unigram implements XLM-RoBERTa compatible SentencePiece Unigram tokenization.
//
// Note: Token IDs are remapped from SentencePiece indices to match HuggingFace
// XLM-RoBERTa convention:
//   - HF[0] = <s>   (SP[1])
//   - HF[1] = <pad> (not in SentencePiece)
//   - HF[2] = </s>  (SP[2])
//   - HF[3] = <unk> (SP[0])
//   - HF[n+1] = SP[n] for n >= 3 (normal tokens shifted by 1)
type Unigram struct {
	pieces    map[string]int32   // token string -> SentencePiece index
	scores    map[string]float32 // token string -> log probability
	idToPiece []string           // SentencePiece index -> token string

	bosID int32
	padID int32
	eosID int32
	unkID int32

	maxTokenLen int
	unkScore    float64
	sourcePath  string
}

// TokenInfo represents a token with its position in the normalized text.
type TokenInfo struct {
	ID    int32
	Text  string
	Start int
	End   int
}

// NewUnigram loads a tokenizer from a SentencePiece .model file.
func NewUnigram(modelPath string) (*Unigram, error) {
	model, err := LoadModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model: %w", err)
	}
	if model.ModelType != ModelUnigram {
		return nil, fmt.Errorf("unsupported sentencepiece model type %d", model.ModelType)
	}

	t := newUnigram(model)
	t.sourcePath = modelPath
	return t, nil
}

func newUnigram(model *Model) *Unigram {
	t := &Unigram{
		pieces:    make(map[string]int32, len(model.Pieces)),
		scores:    make(map[string]float32, len(model.Pieces)),
		idToPiece: make([]string, len(model.Pieces)),
		bosID:     0, // <s>
		padID:     1, // <pad>
		eosID:     2, // </s>
		unkID:     3, // <unk>
	}

	minScore := float32(0)
	for i, piece := range model.Pieces {
		s := piece.Piece
		if piece.Score < minScore {
			minScore = piece.Score
		}
		t.pieces[s] = int32(i)
		t.idToPiece[i] = s
		// Control and unknown pieces never match input text
		if piece.Type == PieceNormal || piece.Type == PieceUserDefined {
			t.scores[s] = piece.Score
		}
		if len([]rune(s)) > t.maxTokenLen {
			t.maxTokenLen = len([]rune(s))
		}
	}
	// SentencePiece penalizes unknown characters below every real piece
	t.unkScore = float64(minScore) - 10
	return t
}

// spIndexToHFID converts a SentencePiece index to a HuggingFace XLM-RoBERTa token ID.
func (t *Unigram) spIndexToHFID(spIndex int32) int32 {
	switch spIndex {
	case 0: // <unk>
		return 3
	case 1: // <s>
		return 0
	case 2: // </s>
		return 2
	default:
		return spIndex + 1
	}
}

// hfIDToSPIndex is the inverse of spIndexToHFID for the special tokens and
// shifted normal tokens. <pad> has no SentencePiece index and maps to <unk>.
func (t *Unigram) hfIDToSPIndex(hfID int32) int32 {
	switch hfID {
	case 0:
		return 1
	case 1, 3:
		return 0
	case 2:
		return 2
	default:
		return hfID - 1
	}
}

// IDToPiece returns the piece string for a HuggingFace token ID, or "" if the
// ID is out of range.
func (t *Unigram) IDToPiece(id int32) string {
	if id == t.padID {
		return "<pad>"
	}
	sp := t.hfIDToSPIndex(id)
	if sp < 0 || int(sp) >= len(t.idToPiece) {
		return ""
	}
	return t.idToPiece[sp]
}

// Save copies the source .model file into dir as sentencepiece.bpe.model.
func (t *Unigram) Save(dir string) error {
	if t.sourcePath == "" {
		return fmt.Errorf("unigram tokenizer has no source file")
	}
	return copyFile(t.sourcePath, filepath.Join(dir, UnigramFile))
}

// Close releases tokenizer resources.
func (t *Unigram) Close() error {
	return nil
}

// VocabSize returns the vocabulary size (HuggingFace XLM-RoBERTa compatible).
// This is the SentencePiece vocab size + 1 for the inserted <pad> token.
func (t *Unigram) VocabSize() int {
	return len(t.idToPiece) + 1
}

// BOSID returns the beginning-of-sentence token ID.
func (t *Unigram) BOSID() int32 { return t.bosID }

// PadID returns the padding token ID.
func (t *Unigram) PadID() int32 { return t.padID }

// EOSID returns the end-of-sentence token ID.
func (t *Unigram) EOSID() int32 { return t.eosID }

// UnkID returns the unknown token ID.
func (t *Unigram) UnkID() int32 { return t.unkID }

// copyFile copies src to dst through a temporary file in dst's directory.
// Copying a file onto itself is a no-op.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	srcInfo, err := in.Stat()
	if err != nil {
		return err
	}
	if dstInfo, err := os.Stat(dst); err == nil && os.SameFile(srcInfo, dstInfo) {
		return nil
	}

	out, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(out.Name()) }()

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copying %s: %w", src, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(out.Name(), dst)
}
