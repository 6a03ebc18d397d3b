// Package batch encodes text into padded, masked token batches.
package batch

import (
	"fmt"

	"github.com/jamesainslie/darkscan/tokenizer"
)

// Padding selects how rows inside a batch are brought to equal length.
type Padding int

const (
	// PadLongest pads to the longest row in the batch (training).
	PadLongest Padding = iota
	// PadMaxLength pads every row to the encoder's max length (inference).
	PadMaxLength
)

// Batch is a model-ready group of sequences. All rows of TokenIDs and
// AttentionMask have the same length.
type Batch struct {
	TokenIDs      [][]int64
	AttentionMask [][]int64
	// Labels is nil when the batch was encoded for scoring only.
	Labels []int
}

// Len returns the number of rows.
func (b *Batch) Len() int { return len(b.TokenIDs) }

// SeqLen returns the padded row length.
func (b *Batch) SeqLen() int {
	if len(b.TokenIDs) == 0 {
		return 0
	}
	return len(b.TokenIDs[0])
}

// Encoder tokenizes text, adds BOS/EOS, truncates and pads.
// It holds no mutable state and is safe for concurrent use.
type Encoder struct {
	tok    tokenizer.Tokenizer
	maxLen int
}

// NewEncoder returns an Encoder truncating sequences to maxLen tokens
// including BOS and EOS.
func NewEncoder(tok tokenizer.Tokenizer, maxLen int) (*Encoder, error) {
	if maxLen < 2 {
		return nil, fmt.Errorf("max length %d leaves no room for BOS and EOS", maxLen)
	}
	return &Encoder{tok: tok, maxLen: maxLen}, nil
}

// MaxLen returns the truncation length.
func (e *Encoder) MaxLen() int { return e.maxLen }

// Encode builds a batch from texts. labels may be nil; otherwise it must have
// the same length as texts.
func (e *Encoder) Encode(texts []string, labels []int, padding Padding) (*Batch, error) {
	if labels != nil && len(labels) != len(texts) {
		return nil, fmt.Errorf("got %d labels for %d texts", len(labels), len(texts))
	}

	rows := make([][]int64, len(texts))
	width := 0
	for i, text := range texts {
		row, err := e.sequence(text)
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		rows[i] = row
		width = max(width, len(row))
	}
	if padding == PadMaxLength {
		width = e.maxLen
	}

	pad := int64(e.tok.PadID())
	b := &Batch{
		TokenIDs:      make([][]int64, len(rows)),
		AttentionMask: make([][]int64, len(rows)),
	}
	for i, row := range rows {
		ids := make([]int64, width)
		mask := make([]int64, width)
		for j := range ids {
			if j < len(row) {
				ids[j] = row[j]
				mask[j] = 1
			} else {
				ids[j] = pad
			}
		}
		b.TokenIDs[i] = ids
		b.AttentionMask[i] = mask
	}
	if labels != nil {
		b.Labels = append([]int(nil), labels...)
	}
	return b, nil
}

// sequence returns BOS + tokens + EOS truncated to maxLen, keeping EOS.
func (e *Encoder) sequence(text string) ([]int64, error) {
	var ids []int32
	if ce, ok := e.tok.(tokenizer.CheckedEncoder); ok {
		var err error
		if ids, err = ce.EncodeIDsChecked(text); err != nil {
			return nil, err
		}
	} else {
		ids = e.tok.EncodeIDs(text)
	}
	if len(ids) > e.maxLen-2 {
		ids = ids[:e.maxLen-2]
	}

	seq := make([]int64, 0, len(ids)+2)
	seq = append(seq, int64(e.tok.BOSID()))
	for _, id := range ids {
		seq = append(seq, int64(id))
	}
	return append(seq, int64(e.tok.EOSID())), nil
}
