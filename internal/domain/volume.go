package domain

// Volume groups chapters of a book. It lives in the metadata store.
type Volume struct {
	Timestamps

	ID     string `json:"id"`
	BookID string `json:"book_id"`
	Name   string `json:"name"`
}
