package tokenizer

const negInf = -1e9

// EncodeIDs returns HuggingFace-compatible token IDs for the input text.
func (t *Unigram) EncodeIDs(text string) []int32 {
	tokens := t.Encode(text)
	ids := make([]int32, len(tokens))
	for i, tok := range tokens {
		ids[i] = tok.ID
	}
	return ids
}

// Encode tokenizes text using the Viterbi algorithm, returning tokens with
// rune offsets into the normalized text.
func (t *Unigram) Encode(text string) []TokenInfo {
	normalized := normalize(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	n := len(runes)

	// best[i] = best log probability to tokenize runes[0:i]
	best := make([]float64, n+1)
	// parent[i] = start position of the token ending at position i
	parent := make([]int, n+1)
	// tokenAt[i] = the token string ending at position i
	tokenAt := make([]string, n+1)
	unknown := make([]bool, n+1)

	for i := 1; i <= n; i++ {
		best[i] = negInf
		parent[i] = -1
	}

	for i := 1; i <= n; i++ {
		maxLen := min(t.maxTokenLen, i)

		for length := 1; length <= maxLen; length++ {
			j := i - length
			if best[j] == negInf {
				continue
			}
			substr := string(runes[j:i])

			score, exists := t.scores[substr]
			if !exists {
				continue
			}

			candidate := best[j] + float64(score)
			if candidate > best[i] {
				best[i] = candidate
				parent[i] = j
				tokenAt[i] = substr
			}
		}

		// No piece ends here: emit <unk> for a single character
		if best[i] == negInf {
			best[i] = best[i-1] + t.unkScore
			parent[i] = i - 1
			tokenAt[i] = string(runes[i-1 : i])
			unknown[i] = true
		}
	}

	var tokens []TokenInfo
	for pos := n; pos > 0; pos = parent[pos] {
		start := parent[pos]
		tokenStr := tokenAt[pos]

		id := t.unkID
		if !unknown[pos] {
			id = t.spIndexToHFID(t.pieces[tokenStr])
		}

		tokens = append(tokens, TokenInfo{
			ID:    id,
			Text:  tokenStr,
			Start: start,
			End:   pos,
		})
	}

	for i, j := 0, len(tokens)-1; i < j; i, j = i+1, j-1 {
		tokens[i], tokens[j] = tokens[j], tokens[i]
	}

	return tokens
}
