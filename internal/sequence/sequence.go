// Package sequence allocates per-book chapter numbers.
package sequence

import (
	"context"
	"errors"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/store"
)

// LatestFinder returns the highest-numbered chapter of a book.
// It must return store.ErrNotFound for an empty partition.
type LatestFinder interface {
	LatestChapter(ctx context.Context, bookID string) (*domain.Chapter, error)
}

// Next computes the number the next chapter of bookID should take: 1 for an
// empty book, otherwise one more than the current highest number.
//
// Next only reads. Two callers can compute the same value; the content
// store's duplicate-key rejection decides the winner, and the loser
// recomputes on store.ErrDuplicateNumber.
func Next(ctx context.Context, finder LatestFinder, bookID string) (int, error) {
	latest, err := finder.LatestChapter(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return latest.Number + 1, nil
}
