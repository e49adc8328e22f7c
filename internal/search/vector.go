// Package search maintains the derived search data for books and chapters.
//
// Books are searched in the metadata store through a denormalized
// search_vector column matched by substring or trigram similarity.
// Chapters are searched through a Bleve full-text index.
package search

import "github.com/quillpress/quill-server/internal/normalize"

// DefaultThreshold is the minimum trigram similarity for a fuzzy book match.
const DefaultThreshold = 0.3

// Vector builds a book's search vector from its searchable fields.
// It is a pure function of its inputs; callers recompute it after every save.
func Vector(title, description, author string) string {
	return normalize.Text(title) + " " + normalize.Text(description) + " " + normalize.Text(author)
}

// SanitizeQuery prepares raw user input for matching against search vectors.
// An empty result means there is nothing to search for.
func SanitizeQuery(raw string) string {
	return normalize.Query(raw)
}
