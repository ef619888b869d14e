package pdfs

import "unicode"

// Token accounting uses the rough 4-characters-per-token estimate, applied
// per word so that one word always costs at least one token. Everything that
// budgets text (chunking, context assembly, history truncation) shares this
// estimator, so the budgets are mutually consistent even though they are
// approximations of the real model tokenizer.

// wordSpan is a whitespace-delimited run of text with byte offsets into the
// source string.
type wordSpan struct {
	start  int
	end    int
	tokens int
}

// tokenCost estimates the token count of a single word.
func tokenCost(runes int) int {
	if runes <= 0 {
		return 0
	}
	return (runes + 3) / 4
}

// scanWords returns the word spans of text in order.
func scanWords(text string) []wordSpan {
	var words []wordSpan
	start := -1
	runes := 0
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, wordSpan{start: start, end: i, tokens: tokenCost(runes)})
				start, runes = -1, 0
			}
			continue
		}
		if start < 0 {
			start = i
		}
		runes++
	}
	if start >= 0 {
		words = append(words, wordSpan{start: start, end: len(text), tokens: tokenCost(runes)})
	}
	return words
}

// EstimateTokens estimates the model token count of arbitrary text.
func EstimateTokens(text string) int {
	total := 0
	for _, w := range scanWords(text) {
		total += w.tokens
	}
	return total
}
