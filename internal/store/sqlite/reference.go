package sqlite

import (
	"context"
	"fmt"

	"github.com/quillpress/quill-server/internal/domain"
)

// CreateGenre inserts a genre.
// Returns store.ErrAlreadyExists if the ID or filter name is taken.
func (s *Store) CreateGenre(ctx context.Context, g *domain.Genre) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO genres (id, name, filter_name) VALUES (?, ?, ?)`,
		g.ID, g.Name, g.FilterName)
	return classify(err)
}

// ListGenres returns all genres ordered by name.
func (s *Store) ListGenres(ctx context.Context) ([]*domain.Genre, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, filter_name FROM genres ORDER BY name, id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	genres := []*domain.Genre{}
	for rows.Next() {
		var g domain.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.FilterName); err != nil {
			return nil, fmt.Errorf("scan genre: %w", err)
		}
		genres = append(genres, &g)
	}
	return genres, classify(rows.Err())
}

// CreateStatus inserts a status.
// Returns store.ErrAlreadyExists if the ID or name is taken.
func (s *Store) CreateStatus(ctx context.Context, st *domain.Status) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statuses (id, name) VALUES (?, ?)`, st.ID, st.Name)
	return classify(err)
}

// ListStatuses returns all statuses ordered by name.
func (s *Store) ListStatuses(ctx context.Context) ([]*domain.Status, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM statuses ORDER BY name, id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	statuses := []*domain.Status{}
	for rows.Next() {
		var st domain.Status
		if err := rows.Scan(&st.ID, &st.Name); err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, &st)
	}
	return statuses, classify(rows.Err())
}
