package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/pagination"
	"github.com/quillpress/quill-server/internal/search"
	"github.com/quillpress/quill-server/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns a filtered, ordered page of books",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Create book",
		Description:   "Creates a book with a generated permalink",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search books",
		Description: "Ranks books by title, description and author",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID or permalink",
		Tags:        []string{"Books"},
	}, s.handleGetBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBook",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{id}",
		Summary:     "Update book",
		Description: "Updates a book. The permalink never changes.",
		Tags:        []string{"Books"},
	}, s.handleUpdateBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBookVolumes",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/volumes",
		Summary:     "List book volumes",
		Description: "Returns the volumes of a book, each with its first page of chapters",
		Tags:        []string{"Books", "Volumes"},
	}, s.handleListBookVolumes)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBookChapters",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/chapters",
		Summary:     "List book chapters",
		Description: "Returns a page of a book's chapters in number order",
		Tags:        []string{"Books", "Chapters"},
	}, s.handleListBookChapters)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBookChapters",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/chapters/search",
		Summary:     "Search book chapters",
		Description: "Full-text search over the names and contents of a book's chapters",
		Tags:        []string{"Books", "Chapters"},
	}, s.handleSearchBookChapters)
}

// === DTOs ===

// ListBooksInput contains filters and paging for listing books.
type ListBooksInput struct {
	Genres      []string `query:"genres" doc:"Genre filter names; a book matches if it has any of them"`
	StatusID    string   `query:"status_id" doc:"Publication status ID"`
	Author      string   `query:"author" doc:"Case-insensitive author substring"`
	Title       string   `query:"title" doc:"Case-insensitive title substring"`
	Theme       string   `query:"theme" doc:"Search text matched against the search vector"`
	DateUpdated string   `query:"date_updated" doc:"Only books updated on this day (YYYY-MM-DD)"`
	Ordering    string   `query:"ordering" doc:"One of date_updated, -date_updated, title, -title"`
	Limit       int      `query:"limit" doc:"Return only the first N books; overrides paging"`
	Page        int      `query:"page" default:"1" doc:"Page number, starting at 1"`
	PageSize    int      `query:"page_size" doc:"Items per page"`
}

// BookPageOutput wraps a page of books for Huma.
type BookPageOutput struct {
	Body pagination.Page[domain.BookSummary]
}

// CreateBookRequest is the request body for creating a book.
type CreateBookRequest struct {
	Title       string   `json:"title" doc:"Book title"`
	Description string   `json:"description,omitempty" doc:"Synopsis"`
	Author      string   `json:"author,omitempty" doc:"Author name; defaults to unknown"`
	GenreIDs    []string `json:"genre_ids,omitempty" doc:"Genre IDs"`
	StatusID    string   `json:"status_id,omitempty" doc:"Publication status ID"`
	Cover       string   `json:"cover,omitempty" doc:"Cover image URL"`
}

// CreateBookInput wraps the create book request for Huma.
type CreateBookInput struct {
	Body CreateBookRequest
}

// BookOutput wraps a book for Huma.
type BookOutput struct {
	Body *domain.Book
}

// GetBookInput contains parameters for getting a book.
type GetBookInput struct {
	Ref string `path:"id" doc:"Book ID or permalink"`
}

// UpdateBookRequest is the request body for updating a book. Omitted fields
// are left unchanged.
type UpdateBookRequest struct {
	Title       *string   `json:"title,omitempty" doc:"Book title"`
	Description *string   `json:"description,omitempty" doc:"Synopsis"`
	Author      *string   `json:"author,omitempty" doc:"Author name"`
	GenreIDs    *[]string `json:"genre_ids,omitempty" doc:"Replaces the book's genres"`
	StatusID    *string   `json:"status_id,omitempty" doc:"Publication status ID"`
	Cover       *string   `json:"cover,omitempty" doc:"Cover image URL"`
}

// UpdateBookInput wraps the update book request for Huma.
type UpdateBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body UpdateBookRequest
}

// SearchBooksInput contains parameters for searching books.
type SearchBooksInput struct {
	Query string `query:"q" doc:"Search text"`
}

// BookSearchResponse contains ranked book matches.
type BookSearchResponse struct {
	Books []domain.BookSummary `json:"books" doc:"Matches, best first"`
}

// BookSearchOutput wraps book search results for Huma.
type BookSearchOutput struct {
	Body BookSearchResponse
}

// BookVolumesResponse contains the volumes of a book.
type BookVolumesResponse struct {
	Volumes []service.VolumeWithChapters `json:"volumes" doc:"Volumes in creation order"`
}

// BookVolumesOutput wraps the volumes of a book for Huma.
type BookVolumesOutput struct {
	Body BookVolumesResponse
}

// ListBookChaptersInput contains paging for a book's chapters.
type ListBookChaptersInput struct {
	ID       string `path:"id" doc:"Book ID"`
	Page     int    `query:"page" default:"1" doc:"Page number, starting at 1"`
	PageSize int    `query:"page_size" doc:"Items per page"`
}

// SearchBookChaptersInput contains parameters for searching chapters.
type SearchBookChaptersInput struct {
	ID    string `path:"id" doc:"Book ID"`
	Query string `query:"q" doc:"Search text"`
	Limit int    `query:"limit" doc:"Maximum number of hits"`
}

// ChapterSearchResponse contains ranked chapter hits.
type ChapterSearchResponse struct {
	Chapters []search.ChapterHit `json:"chapters" doc:"Hits, best first"`
}

// ChapterSearchOutput wraps chapter search results for Huma.
type ChapterSearchOutput struct {
	Body ChapterSearchResponse
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*BookPageOutput, error) {
	page, err := s.services.Books.ListBooks(ctx, service.ListBooksRequest{
		Genres:    input.Genres,
		StatusID:  input.StatusID,
		Author:    input.Author,
		Title:     input.Title,
		Theme:     input.Theme,
		UpdatedOn: input.DateUpdated,
		OrderBy:   input.Ordering,
		Limit:     input.Limit,
		Page:      input.Page,
		PageSize:  input.PageSize,
	})
	if err != nil {
		return nil, err
	}
	return &BookPageOutput{Body: page}, nil
}

func (s *Server) handleCreateBook(ctx context.Context, input *CreateBookInput) (*BookOutput, error) {
	book, err := s.services.Books.CreateBook(ctx, service.CreateBookRequest{
		Title:       input.Body.Title,
		Description: input.Body.Description,
		Author:      input.Body.Author,
		GenreIDs:    input.Body.GenreIDs,
		StatusID:    input.Body.StatusID,
		Cover:       input.Body.Cover,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*BookSearchOutput, error) {
	books, err := s.services.Books.SearchBooks(ctx, input.Query)
	if err != nil {
		return nil, err
	}
	return &BookSearchOutput{Body: BookSearchResponse{Books: books}}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *GetBookInput) (*BookOutput, error) {
	book, err := s.services.Books.GetBook(ctx, input.Ref)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleUpdateBook(ctx context.Context, input *UpdateBookInput) (*BookOutput, error) {
	book, err := s.services.Books.UpdateBook(ctx, input.ID, service.UpdateBookRequest{
		Title:       input.Body.Title,
		Description: input.Body.Description,
		Author:      input.Body.Author,
		GenreIDs:    input.Body.GenreIDs,
		StatusID:    input.Body.StatusID,
		Cover:       input.Body.Cover,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}

func (s *Server) handleListBookVolumes(ctx context.Context, input *GetBookInput) (*BookVolumesOutput, error) {
	vols, err := s.services.Volumes.ListVolumesForBook(ctx, input.Ref)
	if err != nil {
		return nil, err
	}
	return &BookVolumesOutput{Body: BookVolumesResponse{Volumes: vols}}, nil
}

func (s *Server) handleListBookChapters(ctx context.Context, input *ListBookChaptersInput) (*ChapterPageOutput, error) {
	page, err := s.services.Chapters.ListBookChapters(ctx, input.ID, input.Page, input.PageSize)
	if err != nil {
		return nil, err
	}
	return &ChapterPageOutput{Body: page}, nil
}

func (s *Server) handleSearchBookChapters(ctx context.Context, input *SearchBookChaptersInput) (*ChapterSearchOutput, error) {
	hits, err := s.services.Chapters.SearchChapters(ctx, input.ID, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &ChapterSearchOutput{Body: ChapterSearchResponse{Chapters: hits}}, nil
}
