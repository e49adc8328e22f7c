package service

import (
	"context"
	"errors"
	"iter"
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
	"github.com/quillpress/quill-server/internal/sequence"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/validation"
)

// ChapterService orchestrates chapter writes across the content store and
// the metadata store, and serves chapter pages.
type ChapterService struct {
	chapters   store.ChapterStore
	meta       store.MetadataStore
	propagator *Propagator
	index      search.ChapterIndexer
	pager      *pagination.Pager
	cfg        Config
	logger     *slog.Logger
	validator  *validation.Validator
	now        func() time.Time
}

// NewChapterService creates a chapter service. A nil index or cache
// disables that derived data.
func NewChapterService(
	chapters store.ChapterStore,
	meta store.MetadataStore,
	propagator *Propagator,
	index search.ChapterIndexer,
	c cache.Cache,
	cfg Config,
	logger *slog.Logger,
) *ChapterService {
	if logger == nil {
		logger = slog.Default()
	}
	if index == nil {
		index = search.NoopIndexer{}
	}
	cfg = cfg.withDefaults()
	return &ChapterService{
		chapters:   chapters,
		meta:       meta,
		propagator: propagator,
		index:      index,
		pager:      pagination.NewPager(c, "chapters", cfg.ChapterTTL, logger),
		cfg:        cfg,
		logger:     logger,
		validator:  validation.New(),
		now:        time.Now,
	}
}

// CreateChapterRequest contains fields for creating a chapter.
// Permalink is optional; when set it is used verbatim.
type CreateChapterRequest struct {
	BookID    string `json:"book_id" validate:"required"`
	VolumeID  string `json:"volume_id" validate:"required"`
	Name      string `json:"name" validate:"notblank,max=255"`
	Content   string `json:"content,omitempty"`
	Permalink string `json:"permalink,omitempty" validate:"omitempty,max=255"`
}

// CreateChapter appends a chapter to its book.
//
// The chapter takes the next free number of its book. Losing a number race
// to a concurrent create recomputes and retries; a generated permalink that
// collides is regenerated. Both share the attempt budget and exhaustion is a
// conflict. A caller-supplied permalink that collides is a conflict at once.
//
// After the insert, the volume and then the book are touched and the chapter
// is indexed. Those steps never fail the call; see Outcome.
func (s *ChapterService) CreateChapter(ctx context.Context, req CreateChapterRequest) (*domain.Chapter, Outcome, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, Outcome{}, err
	}

	vol, err := s.volumeOf(ctx, req.VolumeID, req.BookID)
	if err != nil {
		return nil, Outcome{}, err
	}

	now := s.now()
	ch := &domain.Chapter{
		BookID:    vol.BookID,
		ID:        id.New(),
		VolumeID:  vol.ID,
		Name:      strings.TrimSpace(req.Name),
		Content:   req.Content,
		Permalink: req.Permalink,
	}
	ch.InitTimestamps(now)

	supplied := ch.Permalink != ""
	if !supplied {
		if ch.Permalink, err = permalink.Generate(ch.Name); err != nil {
			return nil, Outcome{}, domerrors.Wrap(err, domerrors.CodeInternal, "generate permalink")
		}
	}

	if err := s.insert(ctx, ch, supplied); err != nil {
		return nil, Outcome{}, err
	}

	s.logger.InfoContext(ctx, "chapter created",
		"chapter_id", ch.ID,
		"book_id", ch.BookID,
		"number", ch.Number,
	)

	out := s.propagator.FromChapter(ctx, ch.BookID, now, ch.VolumeID)
	s.refreshIndex(ctx, ch)
	return ch, out, nil
}

func (s *ChapterService) insert(ctx context.Context, ch *domain.Chapter, suppliedPermalink bool) error {
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		number, err := sequence.Next(ctx, s.chapters, ch.BookID)
		if err != nil {
			return translate(err, "chapter")
		}
		ch.Number = number

		err = s.chapters.InsertChapter(ctx, ch)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, store.ErrDuplicateNumber):
			metrics.NumberRetries.Inc()
			s.logger.DebugContext(ctx, "chapter number taken, recomputing",
				"book_id", ch.BookID,
				"number", number,
				"attempt", attempt,
			)
		case errors.Is(err, store.ErrDuplicatePermalink):
			if suppliedPermalink {
				return domerrors.Conflict("permalink already taken").WithDetails(map[string]string{
					"permalink": "is already taken",
				})
			}
			if ch.Permalink, err = permalink.Generate(ch.Name); err != nil {
				return domerrors.Wrap(err, domerrors.CodeInternal, "generate permalink")
			}
		default:
			return translate(err, "chapter")
		}
	}
	return domerrors.Conflictf("could not allocate a chapter number after %d attempts", s.cfg.MaxAttempts)
}

// UpdateChapterRequest contains the mutable fields of a chapter. Nil fields
// are left unchanged. Number, book, id and permalink never change.
type UpdateChapterRequest struct {
	Name     *string `json:"name,omitempty" validate:"omitnil,notblank,max=255"`
	Content  *string `json:"content,omitempty"`
	VolumeID *string `json:"volume_id,omitempty" validate:"omitnil,notblank"`
}

// UpdateChapter applies req to the chapter with the given id. Moving a
// chapter to another volume of the same book touches both volumes.
func (s *ChapterService) UpdateChapter(ctx context.Context, chapterID string, req UpdateChapterRequest) (*domain.Chapter, Outcome, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, Outcome{}, err
	}

	ch, err := s.chapters.GetChapterByID(ctx, chapterID)
	if err != nil {
		return nil, Outcome{}, translate(err, "chapter")
	}

	touched := []string{ch.VolumeID}
	if req.VolumeID != nil && *req.VolumeID != ch.VolumeID {
		vol, err := s.volumeOf(ctx, *req.VolumeID, ch.BookID)
		if err != nil {
			return nil, Outcome{}, err
		}
		ch.VolumeID = vol.ID
		touched = append(touched, vol.ID)
	}
	if req.Name != nil {
		ch.Name = strings.TrimSpace(*req.Name)
	}
	if req.Content != nil {
		ch.Content = *req.Content
	}

	now := s.now()
	ch.Touch(now)
	if err := s.chapters.UpdateChapter(ctx, ch); err != nil {
		return nil, Outcome{}, translate(err, "chapter")
	}

	out := s.propagator.FromChapter(ctx, ch.BookID, now, touched...)
	s.refreshIndex(ctx, ch)
	return ch, out, nil
}

// DeleteChapter removes a chapter. Its number is never reused while a higher
// number exists. The volume and book are touched afterwards.
func (s *ChapterService) DeleteChapter(ctx context.Context, chapterID string) (Outcome, error) {
	ch, err := s.chapters.GetChapterByID(ctx, chapterID)
	if err != nil {
		return Outcome{}, translate(err, "chapter")
	}
	if err := s.chapters.DeleteChapter(ctx, ch.BookID, ch.Number); err != nil {
		return Outcome{}, translate(err, "chapter")
	}

	s.logger.InfoContext(ctx, "chapter deleted",
		"chapter_id", ch.ID,
		"book_id", ch.BookID,
		"number", ch.Number,
	)

	out := s.propagator.FromChapter(ctx, ch.BookID, s.now(), ch.VolumeID)
	if err := s.index.DeleteChapter(ch.ID); err != nil {
		s.indexFailed(ctx, ch.ID, err)
	}
	return out, nil
}

// GetChapter resolves ref as an id, then as a permalink.
func (s *ChapterService) GetChapter(ctx context.Context, ref string) (*domain.Chapter, error) {
	if id.IsID(ref) {
		ch, err := s.chapters.GetChapterByID(ctx, ref)
		if !errors.Is(err, store.ErrNotFound) {
			return ch, translate(err, "chapter")
		}
	}
	ch, err := s.chapters.GetChapterByPermalink(ctx, ref)
	return ch, translate(err, "chapter")
}

// ListChapters returns one page of a volume's chapters in number order.
// An unknown volume yields an empty page.
//
// Pages are cached and not invalidated by writes. Without versioned keys a
// page can lag behind the content store by up to the chapter TTL.
func (s *ChapterService) ListChapters(ctx context.Context, volumeID string, page, pageSize int) (pagination.Page[domain.ChapterSummary], error) {
	p, err := s.cfg.ChapterPages.Normalize(page, pageSize)
	if err != nil {
		return pagination.Page[domain.ChapterSummary]{}, err
	}

	vol, err := s.meta.GetVolume(ctx, volumeID)
	if errors.Is(err, store.ErrNotFound) {
		return pagination.Empty[domain.ChapterSummary](p), nil
	}
	if err != nil {
		return pagination.Page[domain.ChapterSummary]{}, translate(err, "volume")
	}

	key := pagination.Key("chapters", "volume", vol.ID, p, s.version(vol.DateUpdated))
	return pagination.Fetch(ctx, s.pager, key, p, func(ctx context.Context) ([]domain.ChapterSummary, error) {
		return summaries(s.chapters.ScanChapters(ctx, vol.BookID), func(c *domain.Chapter) bool {
			return c.VolumeID == vol.ID
		})
	})
}

// ListBookChapters returns one page of all of a book's chapters in number
// order. An unknown book yields an empty page.
func (s *ChapterService) ListBookChapters(ctx context.Context, bookID string, page, pageSize int) (pagination.Page[domain.ChapterSummary], error) {
	p, err := s.cfg.ChapterPages.Normalize(page, pageSize)
	if err != nil {
		return pagination.Page[domain.ChapterSummary]{}, err
	}

	book, err := s.meta.GetBook(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return pagination.Empty[domain.ChapterSummary](p), nil
	}
	if err != nil {
		return pagination.Page[domain.ChapterSummary]{}, translate(err, "book")
	}

	key := pagination.Key("chapters", "book", book.ID, p, s.version(book.DateUpdated))
	return pagination.Fetch(ctx, s.pager, key, p, func(ctx context.Context) ([]domain.ChapterSummary, error) {
		return summaries(s.chapters.ScanChapters(ctx, book.ID), nil)
	})
}

// SearchChapters runs a full-text query against one book's chapters.
func (s *ChapterService) SearchChapters(ctx context.Context, bookID, query string, limit int) ([]search.ChapterHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domerrors.FieldError("q", "is required")
	}
	if limit <= 0 {
		limit = search.DefaultChapterLimit
	}
	limit = min(limit, maxChapterHits)

	hits, err := s.index.Search(ctx, bookID, query, limit)
	if err != nil {
		return nil, domerrors.Wrap(err, domerrors.CodeInternal, "search chapters")
	}
	return hits, nil
}

// volumeOf loads a volume and checks it belongs to bookID.
func (s *ChapterService) volumeOf(ctx context.Context, volumeID, bookID string) (*domain.Volume, error) {
	vol, err := s.meta.GetVolume(ctx, volumeID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domerrors.FieldError("volume_id", "volume does not exist")
	}
	if err != nil {
		return nil, translate(err, "volume")
	}
	if vol.BookID != bookID {
		return nil, domerrors.FieldError("volume_id", "volume belongs to another book")
	}
	return vol, nil
}

func (s *ChapterService) version(updated time.Time) string {
	if !s.cfg.VersionedKeys {
		return ""
	}
	return strconv.FormatInt(updated.UnixNano(), 10)
}

func (s *ChapterService) refreshIndex(ctx context.Context, ch *domain.Chapter) {
	if err := s.index.IndexChapter(ch); err != nil {
		s.indexFailed(ctx, ch.ID, err)
	}
}

func (s *ChapterService) indexFailed(ctx context.Context, chapterID string, err error) {
	metrics.IndexFailures.WithLabelValues("chapter").Inc()
	s.logger.WarnContext(ctx, "chapter index refresh failed",
		"chapter_id", chapterID,
		"error", err,
	)
}

// summaries drains a partition scan, keeping the chapters keep accepts
// (all of them when keep is nil).
func summaries(seq iter.Seq2[*domain.Chapter, error], keep func(*domain.Chapter) bool) ([]domain.ChapterSummary, error) {
	out := []domain.ChapterSummary{}
	for c, err := range seq {
		if err != nil {
			return nil, translate(err, "chapter")
		}
		if keep == nil || keep(c) {
			out = append(out, c.Summary())
		}
	}
	return out, nil
}
