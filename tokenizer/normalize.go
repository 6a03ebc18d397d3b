package tokenizer

import "strings"

const sentencePieceSpace = '▁' // U+2581 LOWER ONE EIGHTH BLOCK

// normalize prepares text for SentencePiece following XLM-RoBERTa conventions:
// whitespace runs collapse to a single ▁, a dummy ▁ prefix is added, and
// trailing whitespace is dropped.
func normalize(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	var b strings.Builder
	for _, f := range fields {
		b.WriteRune(sentencePieceSpace)
		b.WriteString(f)
	}
	return b.String()
}
