package dialog

import (
	"strings"
	"unicode"
)

// Normalize lowercases the text, collapses whitespace runs to single spaces
// and trims leading/trailing punctuation. Rule matching and entity extraction
// always operate on normalized text.
func Normalize(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	joined := strings.Join(fields, " ")
	return strings.TrimFunc(joined, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
}
