package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/cache"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/search"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/store/dynamo"
	"github.com/quillpress/quill-server/internal/store/sqlite"
)

// MetadataStoreHandle wraps the SQLite metadata store with shutdown capability.
type MetadataStoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *MetadataStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideMetadataStore opens the metadata database under the data path.
func ProvideMetadataStore(i do.Injector) (*MetadataStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if err := os.MkdirAll(cfg.Storage.DataPath, 0o750); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}

	dbPath := filepath.Join(cfg.Storage.DataPath, "quill.db")
	db, err := sqlite.Open(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Metadata store initialized", "path", dbPath)
	return &MetadataStoreHandle{Store: db}, nil
}

// ContentStoreHandle wraps the configured chapter store.
type ContentStoreHandle struct {
	store.ChapterStore
}

// Shutdown implements do.Shutdownable.
func (h *ContentStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideContentStore opens Badger or connects to DynamoDB, per config.
func ProvideContentStore(i do.Injector) (*ContentStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	s, err := OpenContentStore(context.Background(), cfg, log.Logger)
	if err != nil {
		return nil, err
	}
	return &ContentStoreHandle{ChapterStore: s}, nil
}

// OpenContentStore opens the chapter store selected by cfg.Content.Backend.
// The server and the command-line tools share it so they always read and
// write the same backend.
func OpenContentStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.ChapterStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Content.Backend {
	case config.BackendDynamoDB:
		s, err := dynamo.NewFromConfig(ctx, dynamo.Config{
			Table:    cfg.Dynamo.Table,
			Region:   cfg.Dynamo.Region,
			Endpoint: cfg.Dynamo.Endpoint,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendBadger, "":
		path := filepath.Join(cfg.Storage.DataPath, "chapters")
		s, err := store.New(path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Content store initialized", "backend", config.BackendBadger, "path", path)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown content backend %q", cfg.Content.Backend)
	}
}

// ChapterIndexHandle wraps the Bleve chapter index with shutdown capability.
type ChapterIndexHandle struct {
	*search.ChapterIndex
}

// Shutdown implements do.Shutdownable.
func (h *ChapterIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideChapterIndex provides the chapter full-text index.
func ProvideChapterIndex(i do.Injector) (*ChapterIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewChapterIndex(search.Options{
		DataPath: cfg.Storage.DataPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Chapter index initialized", "documents", docCount)

	return &ChapterIndexHandle{ChapterIndex: index}, nil
}

// CacheHandle wraps the page cache with shutdown capability.
type CacheHandle struct {
	*cache.Ristretto
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideCache provides the in-process page cache.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	c, err := cache.NewRistretto(cache.Config{MaxCost: cfg.Cache.MaxCost})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &CacheHandle{Ristretto: c}, nil
}
