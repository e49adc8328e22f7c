package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/id"
	"github.com/quillpress/quill-server/internal/store"
)

func setupTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "content-store-test-*")
	require.NoError(t, err)

	s, err := store.New(filepath.Join(tmpDir, "content"), nil)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}
	return s, cleanup
}

func makeChapter(bookID string, number int) *domain.Chapter {
	c := &domain.Chapter{
		BookID:    bookID,
		Number:    number,
		ID:        id.New(),
		VolumeID:  "volume-1",
		Name:      fmt.Sprintf("Chapter %d", number),
		Content:   "It was a dark and stormy night.",
		Permalink: fmt.Sprintf("chapter-%d-%s", number, id.New()[:8]),
	}
	c.InitTimestamps(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return c
}

func TestStore_InsertAndGetChapter(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	bookID := id.New()
	c := makeChapter(bookID, 1)
	require.NoError(t, s.InsertChapter(ctx, c))

	byKey, err := s.GetChapter(ctx, bookID, 1)
	require.NoError(t, err)
	if diff := cmp.Diff(c, byKey); diff != "" {
		t.Errorf("GetChapter mismatch (-want +got):\n%s", diff)
	}

	byID, err := s.GetChapterByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Number, byID.Number)

	byPermalink, err := s.GetChapterByPermalink(ctx, c.Permalink)
	require.NoError(t, err)
	assert.Equal(t, c.ID, byPermalink.ID)
}

func TestStore_GetChapter_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	_, err := s.GetChapter(ctx, id.New(), 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetChapterByID(ctx, id.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetChapterByPermalink(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_InsertChapter_DuplicateNumber(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	bookID := id.New()
	require.NoError(t, s.InsertChapter(ctx, makeChapter(bookID, 1)))

	err := s.InsertChapter(ctx, makeChapter(bookID, 1))
	assert.ErrorIs(t, err, store.ErrDuplicateNumber)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	// Same number in a different partition is fine.
	require.NoError(t, s.InsertChapter(ctx, makeChapter(id.New(), 1)))
}

func TestStore_InsertChapter_DuplicatePermalink(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	first := makeChapter(id.New(), 1)
	require.NoError(t, s.InsertChapter(ctx, first))

	second := makeChapter(id.New(), 1)
	second.Permalink = first.Permalink

	err := s.InsertChapter(ctx, second)
	assert.ErrorIs(t, err, store.ErrDuplicatePermalink)

	// The rejected insert left nothing behind.
	_, err = s.GetChapter(ctx, second.BookID, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_LatestChapter(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	bookID := id.New()
	_, err := s.LatestChapter(ctx, bookID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Insert out of order, crossing a digit boundary.
	for _, n := range []int{2, 10, 1, 9} {
		require.NoError(t, s.InsertChapter(ctx, makeChapter(bookID, n)))
	}
	// A neighbouring partition must not leak into the result.
	require.NoError(t, s.InsertChapter(ctx, makeChapter(id.New(), 99)))

	latest, err := s.LatestChapter(ctx, bookID)
	require.NoError(t, err)
	assert.Equal(t, 10, latest.Number)
}

func TestStore_ScanChapters_Ordered(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	bookID := id.New()
	for _, n := range []int{3, 1, 12, 2} {
		require.NoError(t, s.InsertChapter(ctx, makeChapter(bookID, n)))
	}
	require.NoError(t, s.InsertChapter(ctx, makeChapter(id.New(), 5)))

	var numbers []int
	for c, err := range s.ScanChapters(ctx, bookID) {
		require.NoError(t, err)
		numbers = append(numbers, c.Number)
	}
	assert.Equal(t, []int{1, 2, 3, 12}, numbers)
}

func TestStore_ScanChapters_EarlyStop(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	bookID := id.New()
	for n := 1; n <= 5; n++ {
		require.NoError(t, s.InsertChapter(ctx, makeChapter(bookID, n)))
	}

	count := 0
	for _, err := range s.ScanChapters(ctx, bookID) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestStore_UpdateChapter(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	c := makeChapter(id.New(), 1)
	require.NoError(t, s.InsertChapter(ctx, c))

	c.Name = "Renamed"
	c.Content = "New content"
	require.NoError(t, s.UpdateChapter(ctx, c))

	got, err := s.GetChapterByPermalink(ctx, c.Permalink)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "New content", got.Content)

	missing := makeChapter(id.New(), 7)
	assert.ErrorIs(t, s.UpdateChapter(ctx, missing), store.ErrNotFound)
}

func TestStore_DeleteChapter(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	c := makeChapter(id.New(), 1)
	require.NoError(t, s.InsertChapter(ctx, c))
	require.NoError(t, s.DeleteChapter(ctx, c.BookID, c.Number))

	_, err := s.GetChapterByID(ctx, c.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetChapterByPermalink(ctx, c.Permalink)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteChapter(ctx, c.BookID, c.Number), store.ErrNotFound)

	// The permalink is free again.
	again := makeChapter(id.New(), 1)
	again.Permalink = c.Permalink
	require.NoError(t, s.InsertChapter(ctx, again))
}

func TestStore_ConcurrentInsertsSameNumber(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	bookID := id.New()
	const writers = 8

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.InsertChapter(ctx, makeChapter(bookID, 1))
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, store.ErrDuplicateNumber)
	}
	assert.Equal(t, 1, succeeded)
}
