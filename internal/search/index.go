package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/natefinch/atomic"

	"github.com/quillpress/quill-server/internal/domain"
)

// ChapterIndexer keeps the chapter full-text index in step with the content
// store. Index refreshes are best effort: a failure never fails the write
// that triggered it.
type ChapterIndexer interface {
	IndexChapter(c *domain.Chapter) error
	DeleteChapter(id string) error
	Search(ctx context.Context, bookID, query string, limit int) ([]ChapterHit, error)
}

// ChapterHit is a single chapter search result.
type ChapterHit struct {
	ID        string  `json:"id"`
	Number    int     `json:"number"`
	Name      string  `json:"name"`
	Permalink string  `json:"permalink"`
	Score     float64 `json:"score"`
}

// ChapterIndex wraps a Bleve index of chapter names and contents.
//
// Thread safety: all methods are safe for concurrent use. The mutex guards
// the index handle against Rebuild.
type ChapterIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

var _ ChapterIndexer = (*ChapterIndex)(nil)

// Options configures the chapter index.
type Options struct {
	DataPath string       // Directory for index storage
	Logger   *slog.Logger // Uses a stderr text logger if nil
}

// Index constructors, swapped in tests.
var (
	newIndex    = bleve.New
	newMemIndex = bleve.NewMemOnly
)

// mappingVersion is bumped whenever buildChapterMapping changes, which
// forces a rebuild on the next start.
const mappingVersion = "1"

// NewChapterIndex opens the index under opts.DataPath, creating it if it is
// missing and recreating it if it is unreadable or its mapping is outdated.
func NewChapterIndex(opts Options) (*ChapterIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	indexPath := filepath.Join(opts.DataPath, "chapters.bleve")
	versionPath := filepath.Join(opts.DataPath, "chapters.version")

	var index bleve.Index
	var err error
	needsRebuild := false

	indexExists := false
	if _, statErr := os.Stat(indexPath); statErr == nil {
		indexExists = true
	}

	if indexExists {
		existing, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil:
			logger.Info("chapter index has no version file, will rebuild",
				"new_version", mappingVersion,
			)
			needsRebuild = true
		case string(existing) != mappingVersion:
			logger.Info("chapter index mapping version changed, will rebuild",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		}
	}

	if !needsRebuild && indexExists {
		index, err = bleve.Open(indexPath)
		if err != nil {
			logger.Warn("failed to open existing chapter index, will recreate",
				"path", indexPath,
				"error", err,
			)
			needsRebuild = true
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
		index = nil
	}

	if index == nil {
		index, err = bleve.New(indexPath, buildChapterMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := atomic.WriteFile(versionPath, strings.NewReader(mappingVersion)); writeErr != nil {
			logger.Warn("failed to write chapter index version file", "error", writeErr)
		}
		logger.Info("created chapter index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened chapter index", "path", indexPath)
	}

	return &ChapterIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// NewMemChapterIndex creates an index that lives only in memory.
func NewMemChapterIndex(logger *slog.Logger) (*ChapterIndex, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	index, err := bleve.NewMemOnly(buildChapterMapping())
	if err != nil {
		return nil, fmt.Errorf("create memory index: %w", err)
	}
	return &ChapterIndex{index: index, logger: logger}, nil
}

// Close closes the index.
func (s *ChapterIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexChapter adds or replaces a chapter's document.
func (s *ChapterIndex) IndexChapter(c *domain.Chapter) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := ChapterToDocument(c)
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexChapters indexes chapters in batches of 500.
func (s *ChapterIndex) IndexChapters(chapters []*domain.Chapter) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(chapters); i += batchSize {
		end := min(i+batchSize, len(chapters))

		batch := s.index.NewBatch()
		for _, c := range chapters[i:end] {
			doc := ChapterToDocument(c)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteChapter removes a chapter's document. Deleting a missing document is not an error.
func (s *ChapterIndex) DeleteChapter(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the number of indexed chapters.
func (s *ChapterIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops every document and recreates an empty index.
// It blocks all other operations while it runs. On failure the index is
// left open: the previous documents when they can be reopened, otherwise an
// empty in-memory index until the next successful rebuild.
func (s *ChapterIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		index, err := newMemIndex(buildChapterMapping())
		if err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		if err := s.index.Close(); err != nil {
			s.logger.Warn("failed to close replaced chapter index", "error", err)
		}
		s.index = index
		s.logger.Info("rebuilt chapter index", "path", s.path)
		return nil
	}

	if err := s.index.Close(); err != nil {
		s.logger.Warn("failed to close replaced chapter index", "error", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		s.reopen()
		return fmt.Errorf("remove index: %w", err)
	}
	index, err := newIndex(s.path, buildChapterMapping())
	if err != nil {
		s.reopen()
		return fmt.Errorf("create index: %w", err)
	}

	s.index = index
	s.logger.Info("rebuilt chapter index", "path", s.path)
	return nil
}

// reopen restores a usable handle after a failed rebuild. Callers hold mu.
func (s *ChapterIndex) reopen() {
	if index, err := bleve.Open(s.path); err == nil {
		s.index = index
		return
	}
	if index, err := newIndex(s.path, buildChapterMapping()); err == nil {
		s.index = index
		return
	}
	index, err := newMemIndex(buildChapterMapping())
	if err != nil {
		s.logger.Error("chapter index unavailable until the next rebuild", "path", s.path, "error", err)
		return
	}
	s.logger.Error("chapter index fell back to memory", "path", s.path)
	s.index = index
}

// NoopIndexer discards index updates and finds nothing.
type NoopIndexer struct{}

func (NoopIndexer) IndexChapter(*domain.Chapter) error { return nil }
func (NoopIndexer) DeleteChapter(string) error { return nil }
func (NoopIndexer) Search(context.Context, string, string, int) ([]ChapterHit, error) {
	return []ChapterHit{}, nil
}
