package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/search"
	"github.com/quillpress/quill-server/internal/store/sqlite"
	"github.com/quillpress/quill-server/internal/validation"
)

func TestBookService_CreateBook(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()

	book, err := env.books.CreateBook(ctx, CreateBookRequest{
		Title:       "Ember Court",
		Description: "Intrigue among the ash lords",
	})
	require.NoError(t, err)
	assert.Equal(t, "unknown", book.Author)
	assert.True(t, strings.HasPrefix(book.Permalink, "ember-court-"), book.Permalink)
	assert.Len(t, book.Permalink, len("ember-court-")+12)
	assert.NotNil(t, book.GenreIDs)

	stored, err := env.meta.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, search.Vector("Ember Court", "Intrigue among the ash lords", "unknown"), stored.SearchVector)
}

func TestBookService_CreateBook_References(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()

	g, err := env.refs.CreateGenre(ctx, CreateGenreRequest{Name: "Fantasy"})
	require.NoError(t, err)
	st, err := env.refs.CreateStatus(ctx, CreateStatusRequest{Name: "ongoing"})
	require.NoError(t, err)

	book, err := env.books.CreateBook(ctx, CreateBookRequest{
		Title:    "Referenced",
		GenreIDs: []string{g.ID},
		StatusID: st.ID,
	})
	require.NoError(t, err)

	got, err := env.books.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{g.ID}, got.GenreIDs)
	assert.Equal(t, st.ID, got.StatusID)

	_, err = env.books.CreateBook(ctx, CreateBookRequest{Title: "Dangling", GenreIDs: []string{"nope"}})
	require.ErrorIs(t, err, domerrors.ErrValidation)
	assert.Contains(t, validation.Details(err), "genre_ids")
}

func TestBookService_CreateBook_Validation(t *testing.T) {
	env := setupTestEnv(t, Config{})

	_, err := env.books.CreateBook(context.Background(), CreateBookRequest{Title: "   "})
	require.ErrorIs(t, err, domerrors.ErrValidation)
	assert.Equal(t, "is required", validation.Details(err)["title"])
}

// vectorlessStore fails every search vector refresh.
type vectorlessStore struct {
	*sqlite.Store
}

func (vectorlessStore) SetSearchVector(context.Context, string, string) error {
	return errors.New("vector column locked")
}

func TestBookService_CreateBook_VectorInInsert(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	svc := NewBookService(vectorlessStore{env.meta}, nil, Config{}, nil)

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Quiet Save", Author: "Wren"})
	require.NoError(t, err)
	assert.Equal(t, search.Vector("Quiet Save", "", "Wren"), book.SearchVector)

	stored, err := env.meta.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, book.SearchVector, stored.SearchVector)

	hits, err := svc.SearchBooks(ctx, "quiet")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, book.ID, hits[0].ID)
}

func TestBookService_UpdateBook_VectorFailureKeepsBook(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	svc := NewBookService(vectorlessStore{env.meta}, nil, Config{}, nil)

	book, err := svc.CreateBook(ctx, CreateBookRequest{Title: "Quiet Save"})
	require.NoError(t, err)
	before := book.SearchVector

	title := "Loud Save"
	updated, err := svc.UpdateBook(ctx, book.ID, UpdateBookRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Loud Save", updated.Title)

	stored, err := env.meta.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Loud Save", stored.Title)
	assert.Equal(t, before, stored.SearchVector)
}

func TestBookService_UpdateBook(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "First Draft")

	title := "Final Cut"
	author := "R. Vale"
	updated, err := env.books.UpdateBook(ctx, book.ID, UpdateBookRequest{Title: &title, Author: &author})
	require.NoError(t, err)
	assert.Equal(t, "Final Cut", updated.Title)
	assert.Equal(t, book.Permalink, updated.Permalink)
	assert.True(t, updated.DateUpdated.After(book.DateUpdated))

	stored, err := env.meta.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, search.Vector("Final Cut", "a tale", "R. Vale"), stored.SearchVector)

	_, err = env.books.UpdateBook(ctx, "missing", UpdateBookRequest{Title: &title})
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestBookService_GetBook(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	book := env.createBook(t, "Lookup")

	byLink, err := env.books.GetBook(ctx, book.Permalink)
	require.NoError(t, err)
	assert.Equal(t, book.ID, byLink.ID)

	_, err = env.books.GetBook(ctx, "lookup")
	assert.ErrorIs(t, err, domerrors.ErrNotFound)
}

func TestBookService_ListBooks(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	env.createBook(t, "Ember Court")
	env.createBook(t, "Frost Gate")
	env.createBook(t, "Ember Rising")

	page, err := env.books.ListBooks(ctx, ListBooksRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "Ember Rising", page.Items[0].Title, "newest first by default")

	limited, err := env.books.ListBooks(ctx, ListBooksRequest{Limit: 2, OrderBy: "title"})
	require.NoError(t, err)
	require.Len(t, limited.Items, 2)
	assert.Equal(t, 3, limited.Total)
	assert.Equal(t, "Ember Court", limited.Items[0].Title)
	assert.True(t, limited.HasNext)

	ember, err := env.books.ListBooks(ctx, ListBooksRequest{Title: "EMBER"})
	require.NoError(t, err)
	assert.Equal(t, 2, ember.Total)

	sameDay, err := env.books.ListBooks(ctx, ListBooksRequest{UpdatedOn: "2024-05-01"})
	require.NoError(t, err)
	assert.Equal(t, 3, sameDay.Total)

	_, err = env.books.ListBooks(ctx, ListBooksRequest{OrderBy: "author"})
	assert.ErrorIs(t, err, domerrors.ErrValidation)
	_, err = env.books.ListBooks(ctx, ListBooksRequest{UpdatedOn: "May 1"})
	require.ErrorIs(t, err, domerrors.ErrValidation)
	assert.Contains(t, validation.Details(err), "date_updated")
}

func TestBookService_ListBooks_Cached(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	env.createBook(t, "One")

	first, err := env.books.ListBooks(ctx, ListBooksRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Total)

	env.createBook(t, "Two")

	again, err := env.books.ListBooks(ctx, ListBooksRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, again.Total)

	other, err := env.books.ListBooks(ctx, ListBooksRequest{PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, other.Total, "a different request has its own cache entry")
}

func TestBookService_SearchBooks(t *testing.T) {
	env := setupTestEnv(t, Config{})
	ctx := context.Background()
	env.createBook(t, "Dragon Reborn")
	env.createBook(t, "Quiet Garden")

	hits, err := env.books.SearchBooks(ctx, "DRAGON!")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Dragon Reborn", hits[0].Title)

	none, err := env.books.SearchBooks(ctx, "spaceship")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = env.books.SearchBooks(ctx, "?!")
	assert.ErrorIs(t, err, domerrors.ErrValidation)
}
