// Package domain holds the entities of the publishing catalog: books, their
// volumes and chapters, and the genre and status reference tables.
package domain

import "time"

// DefaultAuthor is recorded when a book is created without an author.
const DefaultAuthor = "unknown"

// Book is the root of the catalog hierarchy. It lives in the metadata store.
type Book struct {
	Timestamps

	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	StatusID    string   `json:"status_id,omitempty"`
	GenreIDs    []string `json:"genre_ids"`
	Cover       string   `json:"cover,omitempty"`
	Permalink   string   `json:"permalink"`

	// SearchVector is derived from Title, Description and Author.
	// It is refreshed by a separate write after each save and may lag.
	SearchVector string `json:"-"`
}

// BookSummary is the list representation of a book.
type BookSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	Cover       string    `json:"cover,omitempty"`
	StatusID    string    `json:"status_id,omitempty"`
	Permalink   string    `json:"permalink"`
	DateUpdated time.Time `json:"date_updated"`
}

// Summary returns the list representation of b.
func (b *Book) Summary() BookSummary {
	return BookSummary{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Cover:       b.Cover,
		StatusID:    b.StatusID,
		Permalink:   b.Permalink,
		DateUpdated: b.DateUpdated,
	}
}
