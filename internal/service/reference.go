package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/quillpress/quill-server/internal/cache"
	"github.com/quillpress/quill-server/internal/domain"
	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/id"
	"github.com/quillpress/quill-server/internal/metrics"
	"github.com/quillpress/quill-server/internal/permalink"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/validation"
)

const genresKey = "genres:all"

// ReferenceService manages the genre and status reference tables.
type ReferenceService struct {
	store     store.ReferenceStore
	cache     cache.Cache
	cfg       Config
	logger    *slog.Logger
	validator *validation.Validator
}

// NewReferenceService creates a reference service. A nil cache disables
// genre list caching.
func NewReferenceService(s store.ReferenceStore, c cache.Cache, cfg Config, logger *slog.Logger) *ReferenceService {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = cache.Noop{}
	}
	return &ReferenceService{
		store:     s,
		cache:     c,
		cfg:       cfg.withDefaults(),
		logger:    logger,
		validator: validation.New(),
	}
}

// CreateGenreRequest contains fields for creating a genre.
type CreateGenreRequest struct {
	Name string `json:"name" validate:"notblank,max=100"`
}

// CreateGenre stores a genre. Its filter name is the slug of its name and
// must be unique.
func (s *ReferenceService) CreateGenre(ctx context.Context, req CreateGenreRequest) (*domain.Genre, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	filterName := permalink.Slugify(name)
	if filterName == "" {
		return nil, domerrors.FieldError("name", "must contain letters or digits")
	}

	g := &domain.Genre{ID: id.New(), Name: name, FilterName: filterName}
	if err := s.store.CreateGenre(ctx, g); err != nil {
		return nil, translate(err, "genre")
	}
	return g, nil
}

// ListGenres returns all genres by name. The list is cached for the genre
// TTL.
func (s *ReferenceService) ListGenres(ctx context.Context) ([]*domain.Genre, error) {
	cached, ok, err := cache.GetJSON[[]*domain.Genre](ctx, s.cache, genresKey)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues("genres", "error").Inc()
		s.logger.WarnContext(ctx, "genre cache read failed", "error", err)
	case ok:
		metrics.CacheRequests.WithLabelValues("genres", "hit").Inc()
		return cached, nil
	default:
		metrics.CacheRequests.WithLabelValues("genres", "miss").Inc()
	}

	genres, err := s.store.ListGenres(ctx)
	if err != nil {
		return nil, translate(err, "genre")
	}
	if err := cache.SetJSON(ctx, s.cache, genresKey, genres, s.cfg.GenreTTL); err != nil {
		s.logger.WarnContext(ctx, "genre cache write failed", "error", err)
	}
	return genres, nil
}

// CreateStatusRequest contains fields for creating a status.
type CreateStatusRequest struct {
	Name string `json:"name" validate:"notblank,max=50"`
}

// CreateStatus stores a publication status. Names are unique.
func (s *ReferenceService) CreateStatus(ctx context.Context, req CreateStatusRequest) (*domain.Status, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	st := &domain.Status{ID: id.New(), Name: strings.TrimSpace(req.Name)}
	if err := s.store.CreateStatus(ctx, st); err != nil {
		return nil, translate(err, "status")
	}
	return st, nil
}

// ListStatuses returns all statuses.
func (s *ReferenceService) ListStatuses(ctx context.Context) ([]*domain.Status, error) {
	statuses, err := s.store.ListStatuses(ctx)
	return statuses, translate(err, "status")
}
