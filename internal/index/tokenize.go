package index

import (
	"strings"
	"unicode/utf8"
)

// MinTokenLength is the shortest token kept, in runes.
const MinTokenLength = 3

// Tokenize lowercases text, splits it on whitespace and keeps the distinct
// tokens of at least MinTokenLength runes, in first-occurrence order.
// Punctuation is not stripped: "search," and "search" are different tokens.
func Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	tokens := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < MinTokenLength {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}
