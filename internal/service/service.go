// Package service implements the catalog operations on top of the metadata
// store, the content store and the derived data kept beside them (search
// vectors, the chapter index, cached pages and ancestor timestamps).
//
// Writes are ordered sequences of independent store calls. Only the first
// call decides success; the derived updates that follow are best effort and
// their failures are logged, counted and reported, never returned.
package service

import (
	"time"

	"github.com/quillpress/quill-server/internal/pagination"
	"github.com/quillpress/quill-server/internal/search"
)

// Config tunes the services. Zero fields take the defaults below.
type Config struct {
	// MaxAttempts bounds chapter number and permalink collision retries.
	MaxAttempts int

	ChapterPages pagination.Bounds
	BookPages    pagination.Bounds

	ChapterTTL  time.Duration
	BookListTTL time.Duration
	GenreTTL    time.Duration

	// VersionedKeys appends the scope's date_updated to chapter page keys,
	// so a write that propagated retires the cached pages of its scope.
	VersionedKeys bool

	SearchThreshold float64
}

// Defaults.
const (
	DefaultMaxAttempts = 5
	DefaultChapterTTL  = 60 * time.Minute
	DefaultBookListTTL = 30 * time.Minute
	DefaultGenreTTL    = 12 * time.Minute
	maxChapterHits     = 100
)

var (
	DefaultChapterPages = pagination.Bounds{Default: 10, Max: 100}
	DefaultBookPages    = pagination.Bounds{Default: 20, Max: 100}
)

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.ChapterPages.Default <= 0 {
		c.ChapterPages = DefaultChapterPages
	}
	if c.BookPages.Default <= 0 {
		c.BookPages = DefaultBookPages
	}
	if c.ChapterTTL <= 0 {
		c.ChapterTTL = DefaultChapterTTL
	}
	if c.BookListTTL <= 0 {
		c.BookListTTL = DefaultBookListTTL
	}
	if c.GenreTTL <= 0 {
		c.GenreTTL = DefaultGenreTTL
	}
	if c.SearchThreshold <= 0 {
		c.SearchThreshold = search.DefaultThreshold
	}
	return c
}
