package tokenizer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
)

// Special tokens shared by Vocab, laid out like RoBERTa's vocab.json.
const (
	vocabBOS = "<s>"
	vocabPad = "<pad>"
	vocabEOS = "</s>"
	vocabUnk = "<unk>"
)

// Vocab is a lowercase word-level tokenizer whose vocabulary is built from a
// training corpus. Words are runs of letters and digits; every other
// non-space character is its own token.
type Vocab struct {
	ids map[string]int32
}

// BuildVocab collects tokens seen at least minFreq times, most frequent first,
// keeping at most maxSize entries including the four special tokens.
// maxSize <= 0 means no limit.
func BuildVocab(texts []string, minFreq, maxSize int) *Vocab {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, w := range splitWords(text) {
			counts[w]++
		}
	}

	words := make([]string, 0, len(counts))
	for w, c := range counts {
		if c >= minFreq {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})

	v := &Vocab{ids: map[string]int32{
		vocabBOS: 0,
		vocabPad: 1,
		vocabEOS: 2,
		vocabUnk: 3,
	}}
	for _, w := range words {
		if maxSize > 0 && len(v.ids) >= maxSize {
			break
		}
		if _, ok := v.ids[w]; ok {
			continue
		}
		v.ids[w] = int32(len(v.ids))
	}
	return v
}

// LoadVocab reads a vocab.json file written by Save.
func LoadVocab(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vocab: %w", err)
	}
	ids := make(map[string]int32)
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("decoding vocab: %w", err)
	}
	for _, special := range []string{vocabBOS, vocabPad, vocabEOS, vocabUnk} {
		if _, ok := ids[special]; !ok {
			return nil, fmt.Errorf("vocab missing special token %s", special)
		}
	}
	return &Vocab{ids: ids}, nil
}

// EncodeIDs returns the token IDs for text; unseen words map to <unk>.
func (v *Vocab) EncodeIDs(text string) []int32 {
	words := splitWords(text)
	if len(words) == 0 {
		return nil
	}
	ids := make([]int32, len(words))
	unk := v.ids[vocabUnk]
	for i, w := range words {
		id, ok := v.ids[w]
		if !ok {
			id = unk
		}
		ids[i] = id
	}
	return ids
}

// VocabSize returns the number of entries including special tokens.
func (v *Vocab) VocabSize() int { return len(v.ids) }

// BOSID returns the beginning-of-sentence token ID.
func (v *Vocab) BOSID() int32 { return v.ids[vocabBOS] }

// EOSID returns the end-of-sentence token ID.
func (v *Vocab) EOSID() int32 { return v.ids[vocabEOS] }

// PadID returns the padding token ID.
func (v *Vocab) PadID() int32 { return v.ids[vocabPad] }

// Save writes vocab.json into dir.
func (v *Vocab) Save(dir string) error {
	data, err := json.MarshalIndent(v.ids, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding vocab: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, VocabFile), data, 0o644)
}

// Close releases tokenizer resources.
func (v *Vocab) Close() error { return nil }

func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			current.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			words = append(words, string(r))
		}
	}
	flush()
	return words
}
