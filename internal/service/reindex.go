package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/store"
)

// BulkIndexer is a chapter index that can be emptied and refilled in batches.
type BulkIndexer interface {
	Rebuild() error
	IndexChapters(chapters []*domain.Chapter) error
	DocumentCount() (uint64, error)
}

// ReindexChapters empties the index and refills it from the content store,
// one book at a time. It returns the number of chapters indexed.
func ReindexChapters(ctx context.Context, books store.BookStore, chapters store.ChapterStore, index BulkIndexer, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	all, _, err := books.ListBooks(ctx, store.BookFilter{OrderBy: store.OrderTitleAsc})
	if err != nil {
		return 0, fmt.Errorf("list books: %w", err)
	}
	if err := index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	total := 0
	for _, book := range all {
		var batch []*domain.Chapter
		for ch, err := range chapters.ScanChapters(ctx, book.ID) {
			if err != nil {
				return total, fmt.Errorf("scan chapters of %s: %w", book.ID, err)
			}
			batch = append(batch, ch)
		}
		if err := index.IndexChapters(batch); err != nil {
			return total, fmt.Errorf("index chapters of %s: %w", book.ID, err)
		}
		total += len(batch)
	}

	logger.InfoContext(ctx, "chapter index rebuilt",
		"books", len(all),
		"chapters", total,
		"duration", time.Since(start),
	)
	return total, nil
}

// ReindexIfEmpty rebuilds the index when it holds no documents, which is
// the state after a fresh start or a mapping change.
func ReindexIfEmpty(ctx context.Context, books store.BookStore, chapters store.ChapterStore, index BulkIndexer, logger *slog.Logger) error {
	count, err := index.DocumentCount()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if count > 0 {
		return nil
	}
	_, err = ReindexChapters(ctx, books, chapters, index, logger)
	return err
}
