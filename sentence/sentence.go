// Package sentence splits text into sentences with a fixed punctuation rule.
//
// A sentence ends after '.', '!' or '?' when the next character is whitespace.
// Abbreviations, decimals and quoted punctuation are not special-cased, so
// "Mr. Smith" splits after "Mr.". Training and inference both depend on this
// exact behavior; do not change it without retraining.
package sentence

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Split returns the trimmed, non-empty sentences of text in order.
// Empty or whitespace-only input returns nil.
func Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	start := 0

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size

		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i >= len(text) {
			break
		}
		next, _ := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(next) {
			continue
		}

		sentences = appendTrimmed(sentences, text[start:i])

		// Skip the whitespace run to find the next sentence start
		for i < len(text) {
			r, size := utf8.DecodeRuneInString(text[i:])
			if !unicode.IsSpace(r) {
				break
			}
			i += size
		}
		start = i
	}

	if start < len(text) {
		sentences = appendTrimmed(sentences, text[start:])
	}

	return sentences
}

func appendTrimmed(dst []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return dst
	}
	return append(dst, s)
}
