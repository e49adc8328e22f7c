// Package permalink builds human-readable, collision-resistant URL slugs.
//
// Uniqueness is probabilistic. The store's unique constraint is the real
// guard: callers that hit it regenerate with Generate and try again.
package permalink

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// SuffixLength is the number of random characters appended by Generate.
	SuffixLength = 12

	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var (
	// Runs of anything that is not a word character, whitespace or hyphen.
	nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s-]+`)
	// Runs of whitespace.
	spaces = regexp.MustCompile(`\s+`)
)

// Slugify converts a display name into a slug.
// "Chapter One: The Beginning!" -> "chapter-one-the-beginning".
// "Café Noël" -> "cafe-noel".
// Slugify is idempotent: Slugify(Slugify(s)) == Slugify(s).
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}

	s = nonWord.ReplaceAllString(s, " ")
	s = spaces.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ToLower(s)

	return strings.Trim(s, "-")
}

// Suffix returns a fresh random suffix of SuffixLength lowercase
// alphanumeric characters.
func Suffix() (string, error) {
	suffix, err := gonanoid.Generate(suffixAlphabet, SuffixLength)
	if err != nil {
		return "", fmt.Errorf("generate permalink suffix: %w", err)
	}
	return suffix, nil
}

// Generate returns Slugify(name) joined to a fresh random suffix by a hyphen.
// A name with nothing sluggable yields the bare suffix.
func Generate(name string) (string, error) {
	suffix, err := Suffix()
	if err != nil {
		return "", err
	}

	slug := Slugify(name)
	if slug == "" {
		return suffix, nil
	}
	return slug + "-" + suffix, nil
}
