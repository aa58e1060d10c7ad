// Package textnorm provides the text normalization shared by question
// classification and table selection: case folding, accent stripping,
// and domain stop-word aware tokenization.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks after NFD decomposition, so
// "internações" and "internacoes" tokenize identically.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases text and removes diacritics.
func Normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	out, _, err := transform.String(stripAccents, lowered)
	if err != nil {
		return lowered
	}
	return out
}

// stopWords are high-frequency Portuguese and English words that carry
// no signal for table matching.
var stopWords = map[string]struct{}{
	"a": {}, "o": {}, "as": {}, "os": {}, "um": {}, "uma": {}, "de": {},
	"do": {}, "da": {}, "dos": {}, "das": {}, "em": {}, "no": {}, "na": {},
	"nos": {}, "nas": {}, "por": {}, "para": {}, "com": {}, "sem": {},
	"que": {}, "qual": {}, "quais": {}, "e": {}, "ou": {}, "ao": {},
	"aos": {}, "se": {}, "sao": {}, "foi": {}, "foram": {}, "ser": {},
	"esta": {}, "este": {}, "essa": {}, "esse": {}, "entre": {},
	"the": {}, "of": {}, "in": {}, "on": {}, "and": {}, "or": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "for": {}, "by": {},
	"how": {}, "what": {}, "which": {},
}

// Tokenize normalizes text and splits it into stop-word-free tokens.
func Tokenize(text string) []string {
	normalized := Normalize(text)
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
