// Package store defines the persistence contracts for Quill and implements
// the Badger-backed content store for chapters.
//
// Two stores sit behind these contracts. The metadata store (books, volumes,
// genres, statuses) is relational and transactional. The content store
// (chapters) is partitioned by book and clustered by chapter number: it
// offers point lookups, ordered in-partition scans and inserts that reject
// duplicate keys, but no joins, no cross-partition transactions and no
// offset pagination. Nothing spans both stores atomically.
package store

import (
	"context"
	"iter"
	"time"

	"github.com/quillpress/quill-server/internal/domain"
)

// ChapterStore is the content store contract.
type ChapterStore interface {
	// InsertChapter writes a new chapter. It returns ErrDuplicateNumber when
	// (BookID, Number) is taken and ErrDuplicatePermalink when the permalink is.
	InsertChapter(ctx context.Context, c *domain.Chapter) error
	GetChapter(ctx context.Context, bookID string, number int) (*domain.Chapter, error)
	GetChapterByID(ctx context.Context, id string) (*domain.Chapter, error)
	GetChapterByPermalink(ctx context.Context, permalink string) (*domain.Chapter, error)
	// LatestChapter returns the highest-numbered chapter of a book, or
	// ErrNotFound when the partition is empty.
	LatestChapter(ctx context.Context, bookID string) (*domain.Chapter, error)
	// ScanChapters yields a book's chapters in ascending number order.
	ScanChapters(ctx context.Context, bookID string) iter.Seq2[*domain.Chapter, error]
	// UpdateChapter overwrites the mutable fields of an existing chapter.
	UpdateChapter(ctx context.Context, c *domain.Chapter) error
	DeleteChapter(ctx context.Context, bookID string, number int) error
	Close() error
}

// BookStore is the book half of the metadata store contract.
type BookStore interface {
	// CreateBook returns ErrDuplicatePermalink on a permalink collision and
	// ErrInvalidReference when the status or a genre does not exist.
	CreateBook(ctx context.Context, b *domain.Book) error
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	GetBookByPermalink(ctx context.Context, permalink string) (*domain.Book, error)
	UpdateBook(ctx context.Context, b *domain.Book) error
	// TouchBook advances date_updated to at. Older timestamps are ignored.
	TouchBook(ctx context.Context, id string, at time.Time) error
	SetSearchVector(ctx context.Context, id, vector string) error
	// ListBooks returns one window of matching books plus the total match count.
	ListBooks(ctx context.Context, filter BookFilter) ([]*domain.Book, int, error)
	// SearchBooks matches the search vector by substring or trigram
	// similarity above threshold, best match first.
	SearchBooks(ctx context.Context, query string, threshold float64) ([]*domain.Book, error)
}

// VolumeStore is the volume half of the metadata store contract.
type VolumeStore interface {
	CreateVolume(ctx context.Context, v *domain.Volume) error
	GetVolume(ctx context.Context, id string) (*domain.Volume, error)
	UpdateVolume(ctx context.Context, v *domain.Volume) error
	// TouchVolume advances date_updated to at. Older timestamps are ignored.
	TouchVolume(ctx context.Context, id string, at time.Time) error
	ListVolumes(ctx context.Context, bookID string) ([]*domain.Volume, error)
}

// ReferenceStore covers the genre and status reference tables.
type ReferenceStore interface {
	CreateGenre(ctx context.Context, g *domain.Genre) error
	ListGenres(ctx context.Context) ([]*domain.Genre, error)
	CreateStatus(ctx context.Context, s *domain.Status) error
	ListStatuses(ctx context.Context) ([]*domain.Status, error)
}

// MetadataStore is the full metadata store contract.
type MetadataStore interface {
	BookStore
	VolumeStore
	ReferenceStore
	Ping(ctx context.Context) error
	Close() error
}

// Book list orderings accepted by BookFilter.OrderBy.
const (
	OrderUpdatedAsc  = "date_updated"
	OrderUpdatedDesc = "-date_updated"
	OrderTitleAsc    = "title"
	OrderTitleDesc   = "-title"
)

// BookFilter selects, orders and windows a book listing.
// Zero-valued fields do not filter.
type BookFilter struct {
	Genres    []string   // genre filter names; a book matches if it has any of them
	StatusID  string     // exact status
	Author    string     // case-insensitive substring
	Title     string     // case-insensitive substring
	Theme     string     // substring of the search vector (already normalized)
	UpdatedOn *time.Time // calendar day (UTC) of date_updated
	OrderBy   string     // one of the Order* constants; default OrderUpdatedDesc
	Offset    int
	Limit     int // 0 means no limit
}
