// Package tokenizer provides text tokenisation for the search engine.
// It lower-cases input and splits on whitespace. Punctuation is kept as part
// of the token and no stemming or stop-word removal is applied, so "backup"
// and "backups" are distinct terms.
package tokenizer

import (
	"strings"
)

// Token represents a single normalised term and its position in the
// original text.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into lowercased, whitespace-delimited Tokens.
func Tokenize(text string) []Token {
	words := strings.Fields(Fold(text))
	tokens := make([]Token, 0, len(words))
	for pos, word := range words {
		tokens = append(tokens, Token{
			Term:     word,
			Position: pos,
		})
	}
	return tokens
}

// Terms returns only the term strings of Tokenize(text).
func Terms(text string) []string {
	return strings.Fields(Fold(text))
}

// Fold applies the case folding used for both documents and queries.
func Fold(text string) string {
	return strings.ToLower(text)
}
