package tokenizer

import (
	"fmt"
	"path/filepath"

	hftok "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// HF wraps a HuggingFace tokenizer.json (for example roberta-base) so models
// exported from the transformers library can be served with their own
// vocabulary.
type HF struct {
	tk         *hftok.Tokenizer
	bosID      int32
	eosID      int32
	padID      int32
	sourcePath string
}

// special token spellings, RoBERTa first then BERT.
var (
	hfBOS = []string{"<s>", "[CLS]"}
	hfEOS = []string{"</s>", "[SEP]"}
	hfPad = []string{"<pad>", "[PAD]"}
)

// NewHF loads a tokenizer.json file.
func NewHF(path string) (*HF, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer.json: %w", err)
	}

	h := &HF{tk: tk, sourcePath: path}
	var ok bool
	if h.bosID, ok = h.lookup(hfBOS); !ok {
		return nil, fmt.Errorf("tokenizer.json has no BOS token")
	}
	if h.eosID, ok = h.lookup(hfEOS); !ok {
		return nil, fmt.Errorf("tokenizer.json has no EOS token")
	}
	if h.padID, ok = h.lookup(hfPad); !ok {
		return nil, fmt.Errorf("tokenizer.json has no pad token")
	}
	return h, nil
}

func (h *HF) lookup(candidates []string) (int32, bool) {
	for _, tok := range candidates {
		if id, ok := h.tk.TokenToId(tok); ok {
			return int32(id), true
		}
	}
	return 0, false
}

// EncodeIDs returns token IDs without special tokens. Text the underlying
// tokenizer cannot encode yields nil; use EncodeIDsChecked to see the error.
func (h *HF) EncodeIDs(text string) []int32 {
	ids, _ := h.EncodeIDsChecked(text)
	return ids
}

// EncodeIDsChecked implements CheckedEncoder.
func (h *HF) EncodeIDsChecked(text string) ([]int32, error) {
	if text == "" {
		return nil, nil
	}
	enc, err := h.tk.EncodeSingle(text, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	ids := make([]int32, len(enc.Ids))
	for i, id := range enc.Ids {
		ids[i] = int32(id)
	}
	return ids, nil
}

// VocabSize returns the vocabulary size including added tokens.
func (h *HF) VocabSize() int { return h.tk.GetVocabSize(true) }

// BOSID returns the beginning-of-sentence token ID.
func (h *HF) BOSID() int32 { return h.bosID }

// EOSID returns the end-of-sentence token ID.
func (h *HF) EOSID() int32 { return h.eosID }

// PadID returns the padding token ID.
func (h *HF) PadID() int32 { return h.padID }

// Save copies the source file into dir as tokenizer.json.
func (h *HF) Save(dir string) error {
	return copyFile(h.sourcePath, filepath.Join(dir, HFFile))
}

// Close releases tokenizer resources.
func (h *HF) Close() error { return nil }
