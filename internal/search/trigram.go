package search

import (
	"strings"
	"unicode"
)

// Trigrams returns the set of trigrams of s the way pg_trgm builds them:
// every run of letters and digits is lowercased and padded with two spaces
// in front and one behind, then split into overlapping three-rune windows.
func Trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})

	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

// Similarity is the trigram similarity of a and b: shared trigrams divided
// by the size of the union. It is 0 when either side has no trigrams.
func Similarity(a, b string) float64 {
	ta, tb := Trigrams(a), Trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ta)+len(tb)-shared)
}
