package domain

import "time"

// Chapter lives in the content store, partitioned by BookID and clustered
// by Number. BookID, Number, ID and Permalink never change after creation.
type Chapter struct {
	Timestamps

	BookID    string `json:"book_id"`
	Number    int    `json:"number"`
	ID        string `json:"id"`
	VolumeID  string `json:"volume_id"`
	Name      string `json:"name"`
	Content   string `json:"content"`
	Permalink string `json:"permalink"`
}

// ChapterSummary is the list representation of a chapter.
type ChapterSummary struct {
	ID          string    `json:"id"`
	Number      int       `json:"number"`
	Name        string    `json:"name"`
	Permalink   string    `json:"permalink"`
	DateUpdated time.Time `json:"date_updated"`
}

// Summary returns the list representation of c.
func (c *Chapter) Summary() ChapterSummary {
	return ChapterSummary{
		ID:          c.ID,
		Number:      c.Number,
		Name:        c.Name,
		Permalink:   c.Permalink,
		DateUpdated: c.DateUpdated,
	}
}
