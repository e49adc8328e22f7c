package api

import (
	"context"

	"github.com/quillpress/quill-server/internal/service"
)

// Services holds the services the handlers call.
type Services struct {
	Books     *service.BookService
	Volumes   *service.VolumeService
	Chapters  *service.ChapterService
	Reference *service.ReferenceService
}

// Pinger reports whether a backing store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DocumentCounter reports the size of a search index.
type DocumentCounter interface {
	DocumentCount() (uint64, error)
}

// Probes are the health checks behind /health. Nil probes are skipped.
type Probes struct {
	Metadata Pinger
	Index    DocumentCounter
}
