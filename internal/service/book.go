package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/quillpress/quill-server/internal/cache"
	"github.com/quillpress/quill-server/internal/domain"
	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/id"
	"github.com/quillpress/quill-server/internal/metrics"
	"github.com/quillpress/quill-server/internal/pagination"
	"github.com/quillpress/quill-server/internal/permalink"
	"github.com/quillpress/quill-server/internal/search"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/validation"
)

// BookService orchestrates book operations.
type BookService struct {
	books     store.BookStore
	pager     *pagination.Pager
	cfg       Config
	logger    *slog.Logger
	validator *validation.Validator
	now       func() time.Time
}

// NewBookService creates a book service. A nil cache disables list caching.
func NewBookService(books store.BookStore, c cache.Cache, cfg Config, logger *slog.Logger) *BookService {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &BookService{
		books:     books,
		pager:     pagination.NewPager(c, "books", cfg.BookListTTL, logger),
		cfg:       cfg,
		logger:    logger,
		validator: validation.New(),
		now:       time.Now,
	}
}

// CreateBookRequest contains fields for creating a book.
type CreateBookRequest struct {
	Title       string   `json:"title" validate:"notblank,max=255"`
	Description string   `json:"description,omitempty" validate:"max=10000"`
	Author      string   `json:"author,omitempty" validate:"max=255"`
	GenreIDs    []string `json:"genre_ids,omitempty" validate:"dive,required"`
	StatusID    string   `json:"status_id,omitempty"`
	Cover       string   `json:"cover,omitempty" validate:"max=2048"`
}

// CreateBook stores a new book with a generated permalink and its search
// vector in a single insert.
func (s *BookService) CreateBook(ctx context.Context, req CreateBookRequest) (*domain.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	author := strings.TrimSpace(req.Author)
	if author == "" {
		author = domain.DefaultAuthor
	}

	book := &domain.Book{
		ID:          id.New(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Author:      author,
		StatusID:    req.StatusID,
		GenreIDs:    req.GenreIDs,
		Cover:       req.Cover,
	}
	if book.GenreIDs == nil {
		book.GenreIDs = []string{}
	}
	book.SearchVector = search.Vector(book.Title, book.Description, book.Author)
	book.InitTimestamps(s.now())

	var err error
	for attempt := 1; ; attempt++ {
		if book.Permalink, err = permalink.Generate(book.Title); err != nil {
			return nil, domerrors.Wrap(err, domerrors.CodeInternal, "generate permalink")
		}

		err = s.books.CreateBook(ctx, book)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicatePermalink) {
			return nil, translateBookWrite(err)
		}
		if attempt == s.cfg.MaxAttempts {
			return nil, domerrors.Conflictf("could not allocate a permalink after %d attempts", attempt)
		}
	}

	s.logger.InfoContext(ctx, "book created", "book_id", book.ID, "permalink", book.Permalink)
	return book, nil
}

// UpdateBookRequest contains the mutable fields of a book. Nil fields are
// left unchanged. The permalink never changes.
type UpdateBookRequest struct {
	Title       *string   `json:"title,omitempty" validate:"omitnil,notblank,max=255"`
	Description *string   `json:"description,omitempty" validate:"omitnil,max=10000"`
	Author      *string   `json:"author,omitempty" validate:"omitnil,max=255"`
	GenreIDs    *[]string `json:"genre_ids,omitempty" validate:"omitnil,dive,required"`
	StatusID    *string   `json:"status_id,omitempty"`
	Cover       *string   `json:"cover,omitempty" validate:"omitnil,max=2048"`
}

// UpdateBook applies req to the book with the given id and refreshes its
// search vector.
func (s *BookService) UpdateBook(ctx context.Context, bookID string, req UpdateBookRequest) (*domain.Book, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	book, err := s.books.GetBook(ctx, bookID)
	if err != nil {
		return nil, translate(err, "book")
	}

	if req.Title != nil {
		book.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		book.Description = *req.Description
	}
	if req.Author != nil {
		book.Author = strings.TrimSpace(*req.Author)
		if book.Author == "" {
			book.Author = domain.DefaultAuthor
		}
	}
	if req.GenreIDs != nil {
		book.GenreIDs = *req.GenreIDs
	}
	if req.StatusID != nil {
		book.StatusID = *req.StatusID
	}
	if req.Cover != nil {
		book.Cover = *req.Cover
	}
	book.Touch(s.now())

	if err := s.books.UpdateBook(ctx, book); err != nil {
		return nil, translateBookWrite(err)
	}

	s.refreshVector(ctx, book)
	return book, nil
}

// GetBook resolves ref as an id, then as a permalink.
func (s *BookService) GetBook(ctx context.Context, ref string) (*domain.Book, error) {
	if id.IsID(ref) {
		book, err := s.books.GetBook(ctx, ref)
		if !errors.Is(err, store.ErrNotFound) {
			return book, translate(err, "book")
		}
	}
	book, err := s.books.GetBookByPermalink(ctx, ref)
	return book, translate(err, "book")
}

// ListBooksRequest filters, orders and pages a book listing. Limit, when
// set, returns the first Limit books and overrides Page and PageSize.
type ListBooksRequest struct {
	Genres    []string `json:"genres,omitempty"`
	StatusID  string   `json:"status_id,omitempty"`
	Author    string   `json:"author,omitempty"`
	Title     string   `json:"title,omitempty"`
	Theme     string   `json:"theme,omitempty"`
	UpdatedOn string   `json:"date_updated,omitempty" validate:"omitempty,datetime=2006-01-02"`
	OrderBy   string   `json:"ordering,omitempty" validate:"omitempty,oneof=date_updated -date_updated title -title"`
	Limit     int      `json:"limit,omitempty" validate:"gte=0"`
	Page      int      `json:"page,omitempty"`
	PageSize  int      `json:"page_size,omitempty"`
}

// ListBooks returns one page of book summaries, newest first by default.
// Results are cached per distinct request for the book list TTL.
func (s *BookService) ListBooks(ctx context.Context, req ListBooksRequest) (pagination.Page[domain.BookSummary], error) {
	if err := s.validator.Validate(req); err != nil {
		return pagination.Page[domain.BookSummary]{}, err
	}

	var (
		p   pagination.Params
		err error
	)
	if req.Limit > 0 {
		p, err = s.cfg.BookPages.Normalize(1, req.Limit)
	} else {
		page := req.Page
		if page == 0 {
			page = 1
		}
		p, err = s.cfg.BookPages.Normalize(page, req.PageSize)
	}
	if err != nil {
		return pagination.Page[domain.BookSummary]{}, err
	}

	filter := store.BookFilter{
		Genres:   req.Genres,
		StatusID: req.StatusID,
		Author:   strings.TrimSpace(req.Author),
		Title:    strings.TrimSpace(req.Title),
		Theme:    search.SanitizeQuery(req.Theme),
		OrderBy:  req.OrderBy,
		Offset:   p.Offset(),
		Limit:    p.PageSize,
	}
	if req.UpdatedOn != "" {
		day, err := time.Parse(time.DateOnly, req.UpdatedOn)
		if err != nil {
			return pagination.Page[domain.BookSummary]{}, domerrors.FieldError("date_updated", "must be a date formatted as 2006-01-02")
		}
		filter.UpdatedOn = &day
	}

	key := cache.HashKey("books",
		strings.Join(filter.Genres, ","),
		filter.StatusID,
		filter.Author,
		filter.Title,
		filter.Theme,
		req.UpdatedOn,
		filter.OrderBy,
		strconv.Itoa(p.Page),
		strconv.Itoa(p.PageSize),
	)
	return pagination.Cached(ctx, s.pager, key, func(ctx context.Context) (pagination.Page[domain.BookSummary], error) {
		books, total, err := s.books.ListBooks(ctx, filter)
		if err != nil {
			return pagination.Page[domain.BookSummary]{}, translate(err, "book")
		}
		return pagination.Window(bookSummaries(books), total, p), nil
	})
}

// SearchBooks ranks books whose search vector contains the sanitized query
// or is trigram-similar to it. No match is an empty list.
func (s *BookService) SearchBooks(ctx context.Context, query string) ([]domain.BookSummary, error) {
	q := search.SanitizeQuery(query)
	if q == "" {
		return nil, domerrors.FieldError("q", "must contain letters or digits")
	}

	books, err := s.books.SearchBooks(ctx, q, s.cfg.SearchThreshold)
	if err != nil {
		return nil, translate(err, "book")
	}
	return bookSummaries(books), nil
}

// refreshVector recomputes the search vector. Until it succeeds, search
// sees the book as it was at its last successful refresh.
func (s *BookService) refreshVector(ctx context.Context, book *domain.Book) {
	vector := search.Vector(book.Title, book.Description, book.Author)
	if err := s.books.SetSearchVector(ctx, book.ID, vector); err != nil {
		metrics.IndexFailures.WithLabelValues("book_vector").Inc()
		s.logger.WarnContext(ctx, "search vector refresh failed",
			"book_id", book.ID,
			"error", err,
		)
		return
	}
	book.SearchVector = vector
}

func translateBookWrite(err error) error {
	if errors.Is(err, store.ErrInvalidReference) {
		return domerrors.ValidationWithDetails("validation failed", map[string]string{
			"genre_ids": "must reference existing genres",
			"status_id": "must reference an existing status",
		})
	}
	return translate(err, "book")
}

func bookSummaries(books []*domain.Book) []domain.BookSummary {
	out := make([]domain.BookSummary, 0, len(books))
	for _, b := range books {
		out = append(out, b.Summary())
	}
	return out
}
