package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/store"
)

// bookColumns is the ordered list of columns selected in book queries.
// Must match the scan order in scanBook.
const bookColumns = `id, title, description, author, status_id, cover, permalink,
	search_vector, date_created, date_updated`

func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var b domain.Book
	var (
		statusID    sql.NullString
		dateCreated string
		dateUpdated string
	)

	err := scanner.Scan(
		&b.ID,
		&b.Title,
		&b.Description,
		&b.Author,
		&statusID,
		&b.Cover,
		&b.Permalink,
		&b.SearchVector,
		&dateCreated,
		&dateUpdated,
	)
	if err != nil {
		return nil, err
	}

	if statusID.Valid {
		b.StatusID = statusID.String
	}
	if b.DateCreated, err = parseTime(dateCreated); err != nil {
		return nil, err
	}
	if b.DateUpdated, err = parseTime(dateUpdated); err != nil {
		return nil, err
	}
	b.GenreIDs = []string{}
	return &b, nil
}

// CreateBook inserts a book row and its genre links in one transaction.
func (s *Store) CreateBook(ctx context.Context, b *domain.Book) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO books (
			id, title, description, author, status_id, cover, permalink,
			search_vector, date_created, date_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID,
		b.Title,
		b.Description,
		b.Author,
		nullString(b.StatusID),
		b.Cover,
		b.Permalink,
		b.SearchVector,
		formatTime(b.DateCreated),
		formatTime(b.DateUpdated),
	)
	if err != nil {
		return classify(err)
	}

	if err := insertBookGenres(ctx, tx, b.ID, b.GenreIDs); err != nil {
		return err
	}
	return classify(tx.Commit())
}

func insertBookGenres(ctx context.Context, tx *sql.Tx, bookID string, genreIDs []string) error {
	for _, g := range genreIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO book_genres (book_id, genre_id) VALUES (?, ?)`, bookID, g); err != nil {
			return classify(err)
		}
	}
	return nil
}

// GetBook retrieves a book by ID.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	return s.getBookWhere(ctx, "id = ?", id)
}

// GetBookByPermalink retrieves a book by permalink.
// Returns store.ErrNotFound if the book does not exist.
func (s *Store) GetBookByPermalink(ctx context.Context, permalink string) (*domain.Book, error) {
	return s.getBookWhere(ctx, "permalink = ?", permalink)
}

func (s *Store) getBookWhere(ctx context.Context, where string, arg any) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE `+where, arg)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}

	if err := s.loadGenreIDs(ctx, []*domain.Book{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBook overwrites the mutable fields of a book and replaces its genre links.
// Permalink and date_created are never changed.
func (s *Store) UpdateBook(ctx context.Context, b *domain.Book) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE books SET
			title = ?, description = ?, author = ?, status_id = ?, cover = ?,
			date_updated = MAX(date_updated, ?)
		WHERE id = ?`,
		b.Title,
		b.Description,
		b.Author,
		nullString(b.StatusID),
		b.Cover,
		formatTime(b.DateUpdated),
		b.ID,
	)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM book_genres WHERE book_id = ?`, b.ID); err != nil {
		return classify(err)
	}
	if err := insertBookGenres(ctx, tx, b.ID, b.GenreIDs); err != nil {
		return err
	}
	return classify(tx.Commit())
}

// TouchBook advances date_updated to at. A later timestamp already stored is kept.
func (s *Store) TouchBook(ctx context.Context, id string, at time.Time) error {
	return s.touch(ctx, "books", id, at)
}

func (s *Store) touch(ctx context.Context, table, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+table+` SET date_updated = MAX(date_updated, ?) WHERE id = ?`,
		formatTime(at), id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetSearchVector stores a book's derived search vector.
func (s *Store) SetSearchVector(ctx context.Context, id, vector string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE books SET search_vector = ? WHERE id = ?`, vector, id)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListBooks returns one window of books matching filter and the total match count.
func (s *Store) ListBooks(ctx context.Context, filter store.BookFilter) ([]*domain.Book, int, error) {
	where, args := bookFilterClause(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&total); err != nil {
		return nil, 0, classify(err)
	}

	q := `SELECT ` + bookColumns + ` FROM books` + where + ` ORDER BY ` + bookOrder(filter.OrderBy)
	pageArgs := append([]any{}, args...)
	switch {
	case filter.Limit > 0:
		q += ` LIMIT ? OFFSET ?`
		pageArgs = append(pageArgs, filter.Limit, filter.Offset)
	case filter.Offset > 0:
		q += ` LIMIT -1 OFFSET ?`
		pageArgs = append(pageArgs, filter.Offset)
	}

	books, err := s.queryBooks(ctx, q, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

func bookFilterClause(f store.BookFilter) (string, []any) {
	var conds []string
	var args []any

	if len(f.Genres) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Genres)), ",")
		conds = append(conds, `id IN (
			SELECT bg.book_id FROM book_genres bg
			JOIN genres g ON g.id = bg.genre_id
			WHERE g.filter_name IN (`+placeholders+`))`)
		for _, g := range f.Genres {
			args = append(args, g)
		}
	}
	if f.StatusID != "" {
		conds = append(conds, `status_id = ?`)
		args = append(args, f.StatusID)
	}
	if f.Author != "" {
		conds = append(conds, `lower(author) LIKE '%' || lower(?) || '%' ESCAPE '\'`)
		args = append(args, escapeLike(f.Author))
	}
	if f.Title != "" {
		conds = append(conds, `lower(title) LIKE '%' || lower(?) || '%' ESCAPE '\'`)
		args = append(args, escapeLike(f.Title))
	}
	if f.Theme != "" {
		conds = append(conds, `search_vector LIKE '%' || ? || '%' ESCAPE '\'`)
		args = append(args, escapeLike(f.Theme))
	}
	if f.UpdatedOn != nil {
		conds = append(conds, `substr(date_updated, 1, 10) = ?`)
		args = append(args, f.UpdatedOn.UTC().Format(time.DateOnly))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

func bookOrder(orderBy string) string {
	switch orderBy {
	case store.OrderUpdatedAsc:
		return `date_updated ASC, id`
	case store.OrderTitleAsc:
		return `title ASC, id`
	case store.OrderTitleDesc:
		return `title DESC, id`
	default:
		return `date_updated DESC, id`
	}
}

// SearchBooks matches query against search vectors by substring or trigram
// similarity above threshold. Results are ordered by similarity, then vector.
// query must already be sanitized; it is always bound as a parameter.
func (s *Store) SearchBooks(ctx context.Context, query string, threshold float64) ([]*domain.Book, error) {
	return s.queryBooks(ctx, `
		SELECT `+bookColumns+` FROM books
		WHERE search_vector LIKE '%' || ? || '%' ESCAPE '\'
			OR similarity(search_vector, ?) > ?
		ORDER BY similarity(search_vector, ?) DESC, search_vector`,
		escapeLike(query), query, threshold, query)
}

func (s *Store) queryBooks(ctx context.Context, q string, args ...any) ([]*domain.Book, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	books := []*domain.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}

	if err := s.loadGenreIDs(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

// loadGenreIDs fills GenreIDs for books with a single query.
func (s *Store) loadGenreIDs(ctx context.Context, books []*domain.Book) error {
	if len(books) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Book, len(books))
	args := make([]any, 0, len(books))
	for _, b := range books {
		byID[b.ID] = b
		args = append(args, b.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(books)), ",")

	rows, err := s.db.QueryContext(ctx,
		`SELECT book_id, genre_id FROM book_genres WHERE book_id IN (`+placeholders+`) ORDER BY genre_id`,
		args...)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()

	for rows.Next() {
		var bookID, genreID string
		if err := rows.Scan(&bookID, &genreID); err != nil {
			return fmt.Errorf("scan book genre: %w", err)
		}
		if b, ok := byID[bookID]; ok {
			b.GenreIDs = append(b.GenreIDs, genreID)
		}
	}
	return classify(rows.Err())
}
