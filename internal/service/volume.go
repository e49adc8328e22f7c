package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillpress/quill-server/internal/domain"
	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/id"
	"github.com/quillpress/quill-server/internal/pagination"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/validation"
)

// volumeFanOut bounds concurrent first-page loads in ListVolumesForBook.
const volumeFanOut = 4

// VolumeService orchestrates volume operations.
type VolumeService struct {
	meta       store.VolumeStore
	books      *BookService
	chapters   *ChapterService
	propagator *Propagator
	logger     *slog.Logger
	validator  *validation.Validator
	now        func() time.Time
}

// NewVolumeService creates a volume service. books resolves book references
// and chapters serves the embedded chapter pages.
func NewVolumeService(meta store.VolumeStore, books *BookService, chapters *ChapterService, propagator *Propagator, logger *slog.Logger) *VolumeService {
	if logger == nil {
		logger = slog.Default()
	}
	return &VolumeService{
		meta:       meta,
		books:      books,
		chapters:   chapters,
		propagator: propagator,
		logger:     logger,
		validator:  validation.New(),
		now:        time.Now,
	}
}

// CreateVolumeRequest contains fields for creating a volume.
type CreateVolumeRequest struct {
	BookID string `json:"book_id" validate:"required"`
	Name   string `json:"name" validate:"notblank,max=255"`
}

// CreateVolume stores a volume and then touches its book.
func (s *VolumeService) CreateVolume(ctx context.Context, req CreateVolumeRequest) (*domain.Volume, Outcome, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, Outcome{}, err
	}

	book, err := s.books.GetBook(ctx, req.BookID)
	if errors.Is(err, domerrors.ErrNotFound) {
		return nil, Outcome{}, domerrors.FieldError("book_id", "book does not exist")
	}
	if err != nil {
		return nil, Outcome{}, err
	}

	now := s.now()
	vol := &domain.Volume{
		ID:     id.New(),
		BookID: book.ID,
		Name:   strings.TrimSpace(req.Name),
	}
	vol.InitTimestamps(now)

	if err := s.meta.CreateVolume(ctx, vol); err != nil {
		return nil, Outcome{}, translate(err, "volume")
	}

	s.logger.InfoContext(ctx, "volume created", "volume_id", vol.ID, "book_id", vol.BookID)
	return vol, s.propagator.FromVolume(ctx, vol.BookID, now), nil
}

// UpdateVolumeRequest contains the mutable fields of a volume.
type UpdateVolumeRequest struct {
	Name string `json:"name" validate:"notblank,max=255"`
}

// UpdateVolume renames a volume and then touches its book.
func (s *VolumeService) UpdateVolume(ctx context.Context, volumeID string, req UpdateVolumeRequest) (*domain.Volume, Outcome, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, Outcome{}, err
	}

	vol, err := s.meta.GetVolume(ctx, volumeID)
	if err != nil {
		return nil, Outcome{}, translate(err, "volume")
	}

	now := s.now()
	vol.Name = strings.TrimSpace(req.Name)
	vol.Touch(now)
	if err := s.meta.UpdateVolume(ctx, vol); err != nil {
		return nil, Outcome{}, translate(err, "volume")
	}

	return vol, s.propagator.FromVolume(ctx, vol.BookID, now), nil
}

// GetVolume returns a single volume.
func (s *VolumeService) GetVolume(ctx context.Context, volumeID string) (*domain.Volume, error) {
	vol, err := s.meta.GetVolume(ctx, volumeID)
	return vol, translate(err, "volume")
}

// VolumeWithChapters is a volume with the first page of its chapters.
type VolumeWithChapters struct {
	*domain.Volume
	Chapters pagination.Page[domain.ChapterSummary] `json:"chapters"`
}

// ListVolumesForBook returns a book's volumes in creation order, each with
// its first chapter page. An unknown book yields an empty list.
func (s *VolumeService) ListVolumesForBook(ctx context.Context, bookRef string) ([]VolumeWithChapters, error) {
	book, err := s.books.GetBook(ctx, bookRef)
	if errors.Is(err, domerrors.ErrNotFound) {
		return []VolumeWithChapters{}, nil
	}
	if err != nil {
		return nil, err
	}

	vols, err := s.meta.ListVolumes(ctx, book.ID)
	if err != nil {
		return nil, translate(err, "volume")
	}

	out := make([]VolumeWithChapters, len(vols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(volumeFanOut)
	for i, vol := range vols {
		out[i].Volume = vol
		g.Go(func() error {
			page, err := s.chapters.ListChapters(gctx, vol.ID, 1, 0)
			if err != nil {
				return err
			}
			out[i].Chapters = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
