package tokenizer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Canonical tokenizer file names inside an artifact directory.
const (
	HFFile      = "tokenizer.json"
	UnigramFile = "sentencepiece.bpe.model"
	VocabFile   = "vocab.json"
)

// ErrNoTokenizer indicates a directory holds none of the known tokenizer files.
var ErrNoTokenizer = errors.New("tokenizer: no tokenizer file found")

// Load opens the tokenizer stored in dir. When several files are present the
// order of preference is tokenizer.json, sentencepiece.bpe.model, vocab.json.
func Load(dir string) (Tokenizer, error) {
	if path := filepath.Join(dir, HFFile); exists(path) {
		return NewHF(path)
	}
	if path := filepath.Join(dir, UnigramFile); exists(path) {
		return NewUnigram(path)
	}
	if path := filepath.Join(dir, VocabFile); exists(path) {
		return LoadVocab(path)
	}
	return nil, fmt.Errorf("%w in %s", ErrNoTokenizer, dir)
}

// Open loads a tokenizer from a single file, dispatching on its name.
func Open(path string) (Tokenizer, error) {
	switch filepath.Base(path) {
	case HFFile:
		return NewHF(path)
	case VocabFile:
		return LoadVocab(path)
	default:
		if filepath.Ext(path) == ".json" {
			return NewHF(path)
		}
		return NewUnigram(path)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
