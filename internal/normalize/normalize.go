// Package normalize folds free text into the lowercase, accent-free form
// used by search vectors and queries.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Text decomposes s (NFKD), drops combining marks and lowercases the result.
// "Café Noël" -> "cafe noel".
func Text(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, s)
	if err != nil {
		// transform only fails on invalid state; fall back to plain lowercasing.
		return strings.ToLower(s)
	}
	return strings.ToLower(folded)
}

// Query sanitizes a raw search query: everything except letters, digits and
// whitespace is removed, then the result is folded with Text and trimmed.
// An empty return value means the query had nothing searchable in it.
func Query(raw string) string {
	kept := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, raw)
	return strings.Join(strings.Fields(Text(kept)), " ")
}
