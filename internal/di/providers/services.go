package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/pagination"
	"github.com/quillpress/quill-server/internal/service"
)

// ProvideServiceConfig maps application config onto service tuning.
func ProvideServiceConfig(i do.Injector) (service.Config, error) {
	cfg := do.MustInvoke[*config.Config](i)

	return service.Config{
		MaxAttempts: cfg.Write.MaxAttempts,
		ChapterPages: pagination.Bounds{
			Default: cfg.Pagination.ChapterPageSize,
			Max:     cfg.Pagination.ChapterMaxPageSize,
		},
		BookPages: pagination.Bounds{
			Default: cfg.Pagination.BookPageSize,
			Max:     cfg.Pagination.BookMaxPageSize,
		},
		ChapterTTL:      cfg.Cache.ChapterTTL,
		BookListTTL:     cfg.Cache.BookListTTL,
		GenreTTL:        cfg.Cache.GenreTTL,
		VersionedKeys:   cfg.Cache.VersionedKeys,
		SearchThreshold: cfg.Search.Threshold,
	}, nil
}

// ProvidePropagator provides the ancestor timestamp propagator.
func ProvidePropagator(i do.Injector) (*service.Propagator, error) {
	meta := do.MustInvoke[*MetadataStoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewPropagator(meta.Store, log.Logger), nil
}

// ProvideBookService provides the book service.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	meta := do.MustInvoke[*MetadataStoreHandle](i)
	c := do.MustInvoke[*CacheHandle](i)
	cfg := do.MustInvoke[service.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewBookService(meta.Store, c.Ristretto, cfg, log.Logger), nil
}

// ProvideChapterService provides the chapter service.
func ProvideChapterService(i do.Injector) (*service.ChapterService, error) {
	content := do.MustInvoke[*ContentStoreHandle](i)
	meta := do.MustInvoke[*MetadataStoreHandle](i)
	prop := do.MustInvoke[*service.Propagator](i)
	index := do.MustInvoke[*ChapterIndexHandle](i)
	c := do.MustInvoke[*CacheHandle](i)
	cfg := do.MustInvoke[service.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewChapterService(content.ChapterStore, meta.Store, prop, index.ChapterIndex, c.Ristretto, cfg, log.Logger), nil
}

// ProvideVolumeService provides the volume service.
func ProvideVolumeService(i do.Injector) (*service.VolumeService, error) {
	meta := do.MustInvoke[*MetadataStoreHandle](i)
	books := do.MustInvoke[*service.BookService](i)
	chapters := do.MustInvoke[*service.ChapterService](i)
	prop := do.MustInvoke[*service.Propagator](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewVolumeService(meta.Store, books, chapters, prop, log.Logger), nil
}

// ProvideReferenceService provides the genre and status service.
func ProvideReferenceService(i do.Injector) (*service.ReferenceService, error) {
	meta := do.MustInvoke[*MetadataStoreHandle](i)
	c := do.MustInvoke[*CacheHandle](i)
	cfg := do.MustInvoke[service.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	return service.NewReferenceService(meta.Store, c.Ristretto, cfg, log.Logger), nil
}

// TriggerReindexIfNeeded refills an empty chapter index in the background.
// Should be called after all services are wired.
func TriggerReindexIfNeeded(i do.Injector) {
	meta := do.MustInvoke[*MetadataStoreHandle](i)
	content := do.MustInvoke[*ContentStoreHandle](i)
	index := do.MustInvoke[*ChapterIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	go func() {
		if err := service.ReindexIfEmpty(context.Background(), meta.Store, content.ChapterStore, index.ChapterIndex, log.Logger); err != nil {
			log.Error("Chapter reindex failed", "error", err)
		}
	}()
}
