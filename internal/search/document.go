package search

import (
	"github.com/quillpress/quill-server/internal/domain"
)

// ChapterDocument is the indexed form of a chapter.
type ChapterDocument struct {
	ID        string
	BookID    string
	Number    int
	Name      string
	Content   string
	Permalink string
}

// ChapterToDocument converts a chapter into its index document.
func ChapterToDocument(c *domain.Chapter) *ChapterDocument {
	return &ChapterDocument{
		ID:        c.ID,
		BookID:    c.BookID,
		Number:    c.Number,
		Name:      c.Name,
		Content:   c.Content,
		Permalink: c.Permalink,
	}
}

// ToMap converts the document to a map so field names match the mapping.
func (d *ChapterDocument) ToMap() map[string]any {
	return map[string]any{
		"book_id":   d.BookID,
		"number":    float64(d.Number),
		"name":      d.Name,
		"content":   d.Content,
		"permalink": d.Permalink,
	}
}
