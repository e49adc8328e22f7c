package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/search"
	"github.com/quillpress/quill-server/internal/store"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
}

func seedReference(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()

	if err := s.CreateStatus(ctx, &domain.Status{ID: "st-ongoing", Name: "ongoing"}); err != nil {
		t.Fatalf("create status: %v", err)
	}
	for _, g := range []*domain.Genre{
		{ID: "g-fantasy", Name: "Fantasy", FilterName: "fantasy"},
		{ID: "g-scifi", Name: "Sci-Fi", FilterName: "sci-fi"},
	} {
		if err := s.CreateGenre(ctx, g); err != nil {
			t.Fatalf("create genre: %v", err)
		}
	}
}

func makeBook(id, title, author string, at time.Time, genres ...string) *domain.Book {
	b := &domain.Book{
		ID:        id,
		Title:     title,
		Author:    author,
		GenreIDs:  genres,
		Permalink: id + "-permalink",
	}
	if b.GenreIDs == nil {
		b.GenreIDs = []string{}
	}
	b.SearchVector = search.Vector(b.Title, b.Description, b.Author)
	b.InitTimestamps(at)
	return b
}

func createBook(t *testing.T, s *Store, b *domain.Book) {
	t.Helper()
	if err := s.CreateBook(context.Background(), b); err != nil {
		t.Fatalf("create book %s: %v", b.ID, err)
	}
}

func TestCreateAndGetBook(t *testing.T) {
	s := newTestStore(t)
	seedReference(t, s)
	ctx := context.Background()

	b := makeBook("b1", "The Long Road", "Ana", day(1), "g-fantasy", "g-scifi")
	b.StatusID = "st-ongoing"
	b.Description = "A journey."
	b.Cover = "covers/b1.jpg"
	createBook(t, s, b)

	got, err := s.GetBook(ctx, "b1")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if diff := cmp.Diff(b, got); diff != "" {
		t.Errorf("GetBook mismatch (-want +got):\n%s", diff)
	}

	byPermalink, err := s.GetBookByPermalink(ctx, b.Permalink)
	if err != nil {
		t.Fatalf("get by permalink: %v", err)
	}
	if byPermalink.ID != "b1" {
		t.Errorf("expected b1, got %s", byPermalink.ID)
	}
}

func TestGetBook_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetBook(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetBookByPermalink(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateBook_DuplicatePermalink(t *testing.T) {
	s := newTestStore(t)

	createBook(t, s, makeBook("b1", "One", "Ana", day(1)))

	dup := makeBook("b2", "Two", "Ana", day(1))
	dup.Permalink = "b1-permalink"
	err := s.CreateBook(context.Background(), dup)
	if !errors.Is(err, store.ErrDuplicatePermalink) {
		t.Fatalf("expected ErrDuplicatePermalink, got %v", err)
	}
}

func TestCreateBook_InvalidReference(t *testing.T) {
	s := newTestStore(t)
	seedReference(t, s)
	ctx := context.Background()

	badStatus := makeBook("b1", "One", "Ana", day(1))
	badStatus.StatusID = "st-missing"
	if err := s.CreateBook(ctx, badStatus); !errors.Is(err, store.ErrInvalidReference) {
		t.Errorf("expected ErrInvalidReference for status, got %v", err)
	}

	badGenre := makeBook("b2", "Two", "Ana", day(1), "g-missing")
	if err := s.CreateBook(ctx, badGenre); !errors.Is(err, store.ErrInvalidReference) {
		t.Errorf("expected ErrInvalidReference for genre, got %v", err)
	}

	// The failed transaction left no book row behind.
	if _, err := s.GetBook(ctx, "b2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound after rollback, got %v", err)
	}
}

func TestUpdateBook(t *testing.T) {
	s := newTestStore(t)
	seedReference(t, s)
	ctx := context.Background()

	b := makeBook("b1", "One", "Ana", day(1), "g-fantasy")
	createBook(t, s, b)

	b.Title = "One, Revised"
	b.GenreIDs = []string{"g-scifi"}
	b.Permalink = "ignored"
	b.Touch(day(2))
	if err := s.UpdateBook(ctx, b); err != nil {
		t.Fatalf("update book: %v", err)
	}

	got, err := s.GetBook(ctx, "b1")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.Title != "One, Revised" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Permalink != "b1-permalink" {
		t.Errorf("permalink changed to %q", got.Permalink)
	}
	if diff := cmp.Diff([]string{"g-scifi"}, got.GenreIDs); diff != "" {
		t.Errorf("genres mismatch (-want +got):\n%s", diff)
	}
	if !got.DateUpdated.Equal(day(2)) {
		t.Errorf("date_updated = %v", got.DateUpdated)
	}

	missing := makeBook("nope", "x", "y", day(1))
	if err := s.UpdateBook(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTouchBook_Monotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createBook(t, s, makeBook("b1", "One", "Ana", day(1)))

	if err := s.TouchBook(ctx, "b1", day(5)); err != nil {
		t.Fatalf("touch: %v", err)
	}
	// An older timestamp never rewinds date_updated.
	if err := s.TouchBook(ctx, "b1", day(3)); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := s.GetBook(ctx, "b1")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if !got.DateUpdated.Equal(day(5)) {
		t.Errorf("date_updated = %v, want %v", got.DateUpdated, day(5))
	}
	if !got.DateCreated.Equal(day(1)) {
		t.Errorf("date_created changed to %v", got.DateCreated)
	}

	if err := s.TouchBook(ctx, "missing", day(5)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetSearchVector(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createBook(t, s, makeBook("b1", "One", "Ana", day(1)))
	if err := s.SetSearchVector(ctx, "b1", "custom vector"); err != nil {
		t.Fatalf("set vector: %v", err)
	}
	got, err := s.GetBook(ctx, "b1")
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if got.SearchVector != "custom vector" {
		t.Errorf("search_vector = %q", got.SearchVector)
	}
}

func seedListing(t *testing.T, s *Store) {
	t.Helper()
	seedReference(t, s)

	alpha := makeBook("alpha", "Alpha", "Mary Shelley", day(1), "g-fantasy")
	beta := makeBook("beta", "Beta", "Bram Stoker", day(2))
	beta.StatusID = "st-ongoing"
	gamma := makeBook("gamma", "Gamma", "mary ann", day(3), "g-fantasy", "g-scifi")
	for _, b := range []*domain.Book{alpha, beta, gamma} {
		createBook(t, s, b)
	}
}

func ids(books []*domain.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func TestListBooks(t *testing.T) {
	s := newTestStore(t)
	seedListing(t, s)
	ctx := context.Background()
	d2 := day(2)

	tests := []struct {
		name      string
		filter    store.BookFilter
		wantIDs   []string
		wantTotal int
	}{
		{"default order newest first", store.BookFilter{}, []string{"gamma", "beta", "alpha"}, 3},
		{"oldest first", store.BookFilter{OrderBy: store.OrderUpdatedAsc}, []string{"alpha", "beta", "gamma"}, 3},
		{"title ascending", store.BookFilter{OrderBy: store.OrderTitleAsc}, []string{"alpha", "beta", "gamma"}, 3},
		{"title descending", store.BookFilter{OrderBy: store.OrderTitleDesc}, []string{"gamma", "beta", "alpha"}, 3},
		{"genre filter name", store.BookFilter{Genres: []string{"fantasy"}}, []string{"gamma", "alpha"}, 2},
		{"any of several genres", store.BookFilter{Genres: []string{"sci-fi", "fantasy"}}, []string{"gamma", "alpha"}, 2},
		{"status", store.BookFilter{StatusID: "st-ongoing"}, []string{"beta"}, 1},
		{"author icontains", store.BookFilter{Author: "MARY"}, []string{"gamma", "alpha"}, 2},
		{"title icontains", store.BookFilter{Title: "amm"}, []string{"gamma"}, 1},
		{"theme", store.BookFilter{Theme: "stoker"}, []string{"beta"}, 1},
		{"updated on day", store.BookFilter{UpdatedOn: &d2}, []string{"beta"}, 1},
		{"window", store.BookFilter{OrderBy: store.OrderTitleAsc, Offset: 1, Limit: 1}, []string{"beta"}, 3},
		{"window past end", store.BookFilter{Offset: 10, Limit: 5}, []string{}, 3},
		{"like wildcard is literal", store.BookFilter{Title: "%"}, []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			books, total, err := s.ListBooks(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list books: %v", err)
			}
			if total != tt.wantTotal {
				t.Errorf("total = %d, want %d", total, tt.wantTotal)
			}
			if diff := cmp.Diff(tt.wantIDs, ids(books)); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSearchBooks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exact := makeBook("exact", "Dragon", "", day(1))
	exact.SearchVector = "dragon"
	longer := makeBook("longer", "Dragon Kingdom", "", day(1))
	longer.SearchVector = "dragon kingdom tales"
	fuzzy := makeBook("fuzzy", "Dragon Reborn", "Jane", day(1))
	fuzzy.SearchVector = "dragn reborn  jane"
	other := makeBook("other", "A Quiet Garden", "Bob", day(1))
	other.SearchVector = "a quiet garden  bob"
	for _, b := range []*domain.Book{exact, longer, fuzzy, other} {
		createBook(t, s, b)
	}

	books, err := s.SearchBooks(ctx, "dragon", search.DefaultThreshold)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	got := ids(books)
	if len(got) < 2 || got[0] != "exact" || got[1] != "longer" {
		t.Errorf("expected exact then longer first, got %v", got)
	}
	for _, id := range got {
		if id == "other" {
			t.Errorf("unrelated book matched: %v", got)
		}
	}

	// No substring match; trigram similarity carries it.
	books, err = s.SearchBooks(ctx, "dragon reborn", search.DefaultThreshold)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(books) == 0 || books[0].ID != "fuzzy" {
		t.Errorf("expected fuzzy match first, got %v", ids(books))
	}

	books, err = s.SearchBooks(ctx, "spaceship", search.DefaultThreshold)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if books == nil || len(books) != 0 {
		t.Errorf("expected empty non-nil result, got %v", books)
	}

	// Wildcards are matched literally.
	books, err = s.SearchBooks(ctx, "%", search.DefaultThreshold)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(books) != 0 {
		t.Errorf("expected no matches for literal %%, got %v", ids(books))
	}
}
