// Package textindex holds the tokenization and lexical ranking shared by the
// job store's full-text search and the matching engine's keyword checks.
package textindex

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s and strips combining marks, so "Zürich" and "zurich"
// compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// Tokenize folds s and splits it on anything that is not a letter or digit.
// "c++" and "c#" keep their symbol so they stay distinct from "c".
func Tokenize(s string) []string {
	folded := Fold(s)
	return strings.FieldsFunc(folded, func(r rune) bool {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
		return r != '+' && r != '#'
	})
}

// ContainsPhrase reports whether the token sequence of phrase occurs in text
// on token boundaries.
func ContainsPhrase(text, phrase string) bool {
	hay := Tokenize(text)
	needle := Tokenize(phrase)
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j := range needle {
			if hay[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

// Document joins the indexed fields of a job into the folded text stored
// next to its tsvector.
func Document(fields ...string) string {
	var parts []string
	for _, f := range fields {
		if toks := Tokenize(f); len(toks) > 0 {
			parts = append(parts, strings.Join(toks, " "))
		}
	}
	return strings.Join(parts, " ")
}
