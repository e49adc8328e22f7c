package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/store"
)

const volumeColumns = `id, book_id, name, date_created, date_updated`

func scanVolume(scanner interface{ Scan(dest ...any) error }) (*domain.Volume, error) {
	var v domain.Volume
	var dateCreated, dateUpdated string

	if err := scanner.Scan(&v.ID, &v.BookID, &v.Name, &dateCreated, &dateUpdated); err != nil {
		return nil, err
	}

	var err error
	if v.DateCreated, err = parseTime(dateCreated); err != nil {
		return nil, err
	}
	if v.DateUpdated, err = parseTime(dateUpdated); err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateVolume inserts a volume.
// Returns store.ErrInvalidReference if the book does not exist.
func (s *Store) CreateVolume(ctx context.Context, v *domain.Volume) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO volumes (id, book_id, name, date_created, date_updated)
		VALUES (?, ?, ?, ?, ?)`,
		v.ID,
		v.BookID,
		v.Name,
		formatTime(v.DateCreated),
		formatTime(v.DateUpdated),
	)
	return classify(err)
}

// GetVolume retrieves a volume by ID.
// Returns store.ErrNotFound if the volume does not exist.
func (s *Store) GetVolume(ctx context.Context, id string) (*domain.Volume, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+volumeColumns+` FROM volumes WHERE id = ?`, id)

	v, err := scanVolume(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return v, nil
}

// UpdateVolume renames a volume and advances its date_updated.
// The owning book never changes.
func (s *Store) UpdateVolume(ctx context.Context, v *domain.Volume) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE volumes SET name = ?, date_updated = MAX(date_updated, ?) WHERE id = ?`,
		v.Name, formatTime(v.DateUpdated), v.ID)
	if err != nil {
		return classify(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TouchVolume advances date_updated to at. A later timestamp already stored is kept.
func (s *Store) TouchVolume(ctx context.Context, id string, at time.Time) error {
	return s.touch(ctx, "volumes", id, at)
}

// ListVolumes returns a book's volumes in creation order.
// An unknown book yields an empty slice.
func (s *Store) ListVolumes(ctx context.Context, bookID string) ([]*domain.Volume, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+volumeColumns+` FROM volumes WHERE book_id = ? ORDER BY date_created, id`, bookID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	volumes := []*domain.Volume{}
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, fmt.Errorf("scan volume: %w", err)
		}
		volumes = append(volumes, v)
	}
	return volumes, classify(rows.Err())
}
