package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/quillpress/quill-server/internal/domain"
)

// Store is the Badger-backed content store. Chapters are keyed by
// (book_id, number); "id" and "permalink" are unique secondary indexes.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	chapters *Entity[domain.Chapter]
}

// Compile-time check that Store satisfies the content store contract.
var _ ChapterStore = (*Store)(nil)

// New opens (or creates) a Badger database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil            // Badger's own logging is too chatty
	opts.SyncWrites = true       // a chapter write must survive a crash once acknowledged
	opts.CompactL0OnClose = true // faster startup

	return open(opts, logger, path)
}

// NewInMemory opens a Badger database that lives only in memory.
func NewInMemory(logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil

	return open(opts, logger, ":memory:")
}

func open(opts badger.Options, logger *slog.Logger, path string) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.chapters = NewEntity[domain.Chapter](s, chapterPrefix).
		WithConflict(ErrDuplicateNumber).
		WithIndex("id", func(c *domain.Chapter) []string {
			return []string{c.ID}
		}, ErrAlreadyExists).
		WithIndex("permalink", func(c *domain.Chapter) []string {
			return []string{c.Permalink}
		}, ErrDuplicatePermalink)

	if logger != nil {
		logger.Info("content store opened", "backend", "badger", "path", path)
	}
	return s, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("closing content store")
	}
	return s.db.Close()
}

// InsertChapter implements ChapterStore.
func (s *Store) InsertChapter(ctx context.Context, c *domain.Chapter) error {
	return s.chapters.Create(ctx, clusterKey(c.BookID, c.Number), c)
}

// GetChapter implements ChapterStore.
func (s *Store) GetChapter(ctx context.Context, bookID string, number int) (*domain.Chapter, error) {
	return s.chapters.Get(ctx, clusterKey(bookID, number))
}

// GetChapterByID implements ChapterStore.
func (s *Store) GetChapterByID(ctx context.Context, id string) (*domain.Chapter, error) {
	return s.chapters.GetByIndex(ctx, "id", id)
}

// GetChapterByPermalink implements ChapterStore.
func (s *Store) GetChapterByPermalink(ctx context.Context, permalink string) (*domain.Chapter, error) {
	return s.chapters.GetByIndex(ctx, "permalink", permalink)
}

// LatestChapter implements ChapterStore with a reverse scan of the partition.
func (s *Store) LatestChapter(ctx context.Context, bookID string) (*domain.Chapter, error) {
	return s.chapters.Last(ctx, partitionKey(bookID))
}

// ScanChapters implements ChapterStore.
func (s *Store) ScanChapters(ctx context.Context, bookID string) iter.Seq2[*domain.Chapter, error] {
	return s.chapters.Scan(ctx, partitionKey(bookID))
}

// UpdateChapter implements ChapterStore.
func (s *Store) UpdateChapter(ctx context.Context, c *domain.Chapter) error {
	return s.chapters.Update(ctx, clusterKey(c.BookID, c.Number), c)
}

// DeleteChapter implements ChapterStore.
func (s *Store) DeleteChapter(ctx context.Context, bookID string, number int) error {
	return s.chapters.Delete(ctx, clusterKey(bookID, number))
}

// translate maps Badger errors onto the store sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var storeErr *Error
	switch {
	case errors.As(err, &storeErr):
		return err
	case errors.Is(err, badger.ErrKeyNotFound):
		return ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, badger.ErrDBClosed),
		errors.Is(err, badger.ErrBlockedWrites),
		errors.Is(err, badger.ErrNoRewrite),
		errors.Is(err, badger.ErrTxnTooBig):
		return ErrUnavailable.WithCause(err)
	default:
		return err
	}
}
