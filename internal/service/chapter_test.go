package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/domain"
	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/validation"
)

func TestChapterService_CreateChapter_SequentialNumbers(t *testing.T) {
	env := setupTestEnv(t, Config{})
	book := env.createBook(t, "The Long Road")
	vol := env.createVolume(t, book.ID, "Volume One")

	var created []*domain.Chapter
	for i := range 3 {
		created = append(created, env.createChapter(t, vol, fmt.Sprintf("Chapter %d: Departure", i+1), "text"))
	}

	for i, ch := range created {
		assert.Equal(t, i+1, ch.Number)
		assert.Equal(t, book.ID, ch.BookID)
		assert.True(t, strings.HasPrefix(ch.Permalink, fmt.Sprintf("chapter-%d-departure-", i+1)), ch.Permalink)
	}

	last := created[len(created)-1]
	gotVol, err := env.meta.GetVolume(context.Background(), vol.ID)
	require.NoError(t, err)
	gotBook, err := env.meta.GetBook(context.Background(), book.ID)
	require.NoError(t, err)

	assert.True(t, gotVol.DateUpdated.Equal(last.DateUpdated), "volume %v chapter %v", gotVol.DateUpdated, last.DateUpdated)
	assert.True(t, gotBook.DateUpdated.Equal(last.DateUpdated), "book %v chapter %v", gotBook.DateUpdated, last.DateUpdated)
}

func TestChapterService_CreateChapter_VolumeOfAnotherBook(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()

	bookA := env.createBook(t, "Book A")
	bookB := env.createBook(t, "Book B")
	volB := env.createVolume(t, bookB.ID, "B1")

	_, _, err := env.chapters.CreateChapter(ctx, CreateChapterRequest{
		BookID:   bookA.ID,
		VolumeID: volB.ID,
		Name:     "Misplaced",
	})
	require.ErrorIs(t, err, domerrors.ErrValidation)
	assert.Contains(t, validation.Details(err), "volume_id")

	for _, id := range []string{bookA.ID, bookB.ID} {
		_, err := env.content.LatestChapter(ctx, id)
		assert.ErrorIs(t, err, store.ErrNotFound, "no chapter may be written for %s", id)
	}
}

func TestChapterService_CreateChapter_UnknownVolume(t *testing.T) {
	env := setupTestEnv(t, Config{})
	book := env.createBook(t, "Book")

	_, _, err := env.chapters.CreateChapter(context.Background(), CreateChapterRequest{
		BookID:   book.ID,
		VolumeID: "missing",
		Name:     "Orphan",
	})
	require.ErrorIs(t, err, domerrors.ErrValidation)
	assert.Equal(t, "volume does not exist", validation.Details(err)["volume_id"])
}

func TestChapterService_CreateChapter_Validation(t *testing.T) {
	env := setupTestEnv(t, Config{})

	_, _, err := env.chapters.CreateChapter(context.Background(), CreateChapterRequest{Name: "  "})
	require.ErrorIs(t, err, domerrors.ErrValidation)
	details := validation.Details(err)
	assert.Contains(t, details, "book_id")
	assert.Contains(t, details, "volume_id")
	assert.Contains(t, details, "name")
}

func TestChapterService_CreateChapter_SuppliedPermalink(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "Book")
	vol := env.createVolume(t, book.ID, "V")

	req := CreateChapterRequest{BookID: book.ID, VolumeID: vol.ID, Name: "Prologue", Permalink: "prologue"}
	first, _, err := env.chapters.CreateChapter(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "prologue", first.Permalink)

	_, _, err = env.chapters.CreateChapter(ctx, req)
	require.ErrorIs(t, err, domerrors.ErrConflict)

	next := env.createChapter(t, vol, "Chapter One", "")
	assert.Equal(t, 2, next.Number, "a rejected create must not consume a number")
}

func TestChapterService_CreateChapter_ConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	env := setupTestEnv(t, Config{MaxAttempts: 50})
	book := env.createBook(t, "Busy Book")
	vol := env.createVolume(t, book.ID, "V")

	const writers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int
		errs    []error
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, _, err := env.chapters.CreateChapter(context.Background(), CreateChapterRequest{
				BookID:   book.ID,
				VolumeID: vol.ID,
				Name:     fmt.Sprintf("Writer %d", i),
			})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers = append(numbers, ch.Number)
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	sort.Ints(numbers)
	want := make([]int, writers)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, numbers)
}

// contentStub lets a test script InsertChapter results in front of a real
// content store.
type contentStub struct {
	*store.Store
	inserts atomic.Int32
	insert  func(n int32, c *domain.Chapter) error
}

func (s *contentStub) InsertChapter(ctx context.Context, c *domain.Chapter) error {
	n := s.inserts.Add(1)
	if err := s.insert(n, c); err != nil {
		return err
	}
	return s.Store.InsertChapter(ctx, c)
}

func TestChapterService_CreateChapter_RetriesExhausted(t *testing.T) {
	env := setupTestEnv(t, Config{MaxAttempts: 3})
	book := env.createBook(t, "Book")
	vol := env.createVolume(t, book.ID, "V")

	stub := &contentStub{Store: env.content, insert: func(int32, *domain.Chapter) error {
		return store.ErrDuplicateNumber
	}}
	svc := NewChapterService(stub, env.meta, env.prop, nil, nil, Config{MaxAttempts: 3}, nil)

	_, _, err := svc.CreateChapter(context.Background(), CreateChapterRequest{
		BookID:   book.ID,
		VolumeID: vol.ID,
		Name:     "Never",
	})
	require.ErrorIs(t, err, domerrors.ErrConflict)
	assert.Equal(t, int32(3), stub.inserts.Load())
}

func TestChapterService_CreateChapter_RegeneratesCollidingPermalink(t *testing.T) {
	env := setupTestEnv(t, Config{})
	book := env.createBook(t, "Book")
	vol := env.createVolume(t, book.ID, "V")

	var rejected string
	stub := &contentStub{Store: env.content, insert: func(n int32, c *domain.Chapter) error {
		if n == 1 {
			rejected = c.Permalink
			return store.ErrDuplicatePermalink
		}
		return nil
	}}
	svc := NewChapterService(stub, env.meta, env.prop, nil, nil, Config{}, nil)

	ch, _, err := svc.CreateChapter(context.Background(), CreateChapterRequest{
		BookID:   book.ID,
		VolumeID: vol.ID,
		Name:     "Echo",
	})
	require.NoError(t, err)
	assert.NotEqual(t, rejected, ch.Permalink)
	assert.True(t, strings.HasPrefix(ch.Permalink, "echo-"))
	assert.Equal(t, 1, ch.Number)
}

func TestChapterService_CreateChapter_PropagationFailure(t *testing.T) {
	env := setupTestEnv(t, Config{})
	book := env.createBook(t, "Book")
	vol := env.createVolume(t, book.ID, "V")

	failing := NewPropagator(&failingToucher{volume: errors.New("volume down"), book: errors.New("book down")}, nil)
	svc := NewChapterService(env.content, env.meta, failing, nil, nil, Config{}, nil)

	ch, out, err := svc.CreateChapter(context.Background(), CreateChapterRequest{
		BookID:   book.ID,
		VolumeID: vol.ID,
		Name:     "Still Written",
	})
	require.NoError(t, err)
	assert.Equal(t, Outcome{StaleVolume: true, StaleBook: true}, out)

	got, err := env.content.GetChapterByID(context.Background(), ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Still Written", got.Name)
}

func TestChapterService_UpdateChapter(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "Book")
	v1 := env.createVolume(t, book.ID, "V1")
	v2 := env.createVolume(t, book.ID, "V2")
	ch := env.createChapter(t, v1, "Draft", "old")

	name := "Final"
	content := "new"
	target := v2.ID
	updated, out, err := env.chapters.UpdateChapter(ctx, ch.ID, UpdateChapterRequest{
		Name:     &name,
		Content:  &content,
		VolumeID: &target,
	})
	require.NoError(t, err)
	assert.False(t, out.Stale())
	assert.Equal(t, "Final", updated.Name)
	assert.Equal(t, "new", updated.Content)
	assert.Equal(t, v2.ID, updated.VolumeID)
	assert.Equal(t, ch.Number, updated.Number)
	assert.Equal(t, ch.Permalink, updated.Permalink)
	assert.True(t, updated.DateUpdated.After(ch.DateUpdated))

	for _, id := range []string{v1.ID, v2.ID} {
		vol, err := env.meta.GetVolume(ctx, id)
		require.NoError(t, err)
		assert.True(t, vol.DateUpdated.Equal(updated.DateUpdated), "volume %s not touched", id)
	}

	got, err := env.chapters.GetChapter(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, "Final", got.Name)
}

func TestChapterService_UpdateChapter_Errors(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "Book")
	other := env.createBook(t, "Other")
	vol := env.createVolume(t, book.ID, "V")
	foreign := env.createVolume(t, other.ID, "F")
	ch := env.createChapter(t, vol, "Draft", "")

	name := "x"
	_, _, err := env.chapters.UpdateChapter(ctx, "missing", UpdateChapterRequest{Name: &name})
	assert.ErrorIs(t, err, domerrors.ErrNotFound)

	blank := " "
	_, _, err = env.chapters.UpdateChapter(ctx, ch.ID, UpdateChapterRequest{Name: &blank})
	assert.ErrorIs(t, err, domerrors.ErrValidation)

	_, _, err = env.chapters.UpdateChapter(ctx, ch.ID, UpdateChapterRequest{VolumeID: &foreign.ID})
	require.ErrorIs(t, err, domerrors.ErrValidation)
	assert.Equal(t, "volume belongs to another book", validation.Details(err)["volume_id"])

	got, err := env.content.GetChapterByID(ctx, ch.ID)
	require.NoError(t, err)
	assert.Equal(t, vol.ID, got.VolumeID)
}

func TestChapterService_DeleteChapter(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "Book")
	vol := env.createVolume(t, book.ID, "V")
	ch := env.createChapter(t, vol, "Doomed", "the lighthouse keeper")

	hits, err := env.chapters.SearchChapters(ctx, book.ID, "lighthouse", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	before, err := env.meta.GetBook(ctx, book.ID)
	require.NoError(t, err)

	out, err := env.chapters.DeleteChapter(ctx, ch.ID)
	require.NoError(t, err)
	assert.False(t, out.Stale())

	_, err = env.chapters.GetChapter(ctx, ch.ID)
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
	_, err = env.chapters.DeleteChapter(ctx, ch.ID)
	assert.ErrorIs(t, err, domerrors.ErrNotFound)

	after, err := env.meta.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.True(t, after.DateUpdated.After(before.DateUpdated))

	hits, err = env.chapters.SearchChapters(ctx, book.ID, "lighthouse", 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChapterService_GetChapter(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "Book")
	vol := env.createVolume(t, book.ID, "V")
	ch := env.createChapter(t, vol, "Found", "")

	byID, err := env.chapters.GetChapter(ctx, ch.ID)
	require.NoError(t, err)
	byLink, err := env.chapters.GetChapter(ctx, ch.Permalink)
	require.NoError(t, err)
	assert.Equal(t, byID.ID, byLink.ID)

	_, err = env.chapters.GetChapter(ctx, "no-such-chapter")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
	_, err = env.chapters.GetChapter(ctx, "3f1c9a0e-7d52-4b8e-9c44-1a2b3c4d5e6f")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestChapterService_ListChapters(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "Book")
	v1 := env.createVolume(t, book.ID, "V1")
	v2 := env.createVolume(t, book.ID, "V2")
	for i := range 12 {
		env.createChapter(t, v1, fmt.Sprintf("One %d", i), "")
	}
	for i := range 3 {
		env.createChapter(t, v2, fmt.Sprintf("Two %d", i), "")
	}

	first, err := env.chapters.ListChapters(ctx, v1.ID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 12, first.Total)
	assert.Len(t, first.Items, 10)
	assert.Equal(t, 1, first.Items[0].Number)
	assert.True(t, first.HasNext)

	second, err := env.chapters.ListChapters(ctx, v1.ID, 2, 10)
	require.NoError(t, err)
	require.Len(t, second.Items, 2)
	assert.Equal(t, []int{11, 12}, []int{second.Items[0].Number, second.Items[1].Number})
	assert.False(t, second.HasNext)

	beyond, err := env.chapters.ListChapters(ctx, v1.ID, 5, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 12, beyond.Total)

	v2Page, err := env.chapters.ListChapters(ctx, v2.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, v2Page.Items, 3)
	assert.Equal(t, 13, v2Page.Items[0].Number)

	unknown, err := env.chapters.ListChapters(ctx, "missing", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, unknown.Total)
	assert.NotNil(t, unknown.Items)

	_, err = env.chapters.ListChapters(ctx, v1.ID, 0, 10)
	assert.ErrorIs(t, err, domerrors.ErrValidation)

	clamped, err := env.chapters.ListChapters(ctx, v1.ID, 1, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, clamped.PageSize)

	all, err := env.chapters.ListBookChapters(ctx, book.ID, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 15, all.Total)
	assert.Len(t, all.Items, 5)
}

func TestChapterService_ListChapters_CachedUntilExpiry(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "Book")
	vol := env.createVolume(t, book.ID, "V")
	env.createChapter(t, vol, "One", "")

	page, err := env.chapters.ListChapters(ctx, vol.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	env.createChapter(t, vol, "Two", "")

	stale, err := env.chapters.ListChapters(ctx, vol.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, stale.Total, "writes do not invalidate cached pages")
}

func TestChapterService_ListChapters_VersionedKeys(t *testing.T) {
	env := setupTestEnv(t, Config{VersionedKeys: true})
	ctx := context.Background()
	book := env.createBook(t, "Book")
	vol := env.createVolume(t, book.ID, "V")
	env.createChapter(t, vol, "One", "")

	page, err := env.chapters.ListChapters(ctx, vol.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	env.createChapter(t, vol, "Two", "")

	fresh, err := env.chapters.ListChapters(ctx, vol.ID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Total)
}

func TestChapterService_SearchChapters(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "Book")
	vol := env.createVolume(t, book.ID, "V")
	env.createChapter(t, vol, "The Storm", "waves crashed against the harbour wall")
	env.createChapter(t, vol, "Calm", "the garden was quiet")

	hits, err := env.chapters.SearchChapters(ctx, book.ID, "harbour", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "The Storm", hits[0].Name)

	_, err = env.chapters.SearchChapters(ctx, book.ID, "   ", 5)
	assert.ErrorIs(t, err, domerrors.ErrValidation)
}
