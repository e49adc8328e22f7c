// Package di provides dependency injection configuration for the Quill server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/di/providers"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideMetadataStore)
	do.Provide(injector, providers.ProvideContentStore)
	do.Provide(injector, providers.ProvideChapterIndex)
	do.Provide(injector, providers.ProvideCache)

	// Business services
	do.Provide(injector, providers.ProvideServiceConfig)
	do.Provide(injector, providers.ProvidePropagator)
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideChapterService)
	do.Provide(injector, providers.ProvideVolumeService)
	do.Provide(injector, providers.ProvideReferenceService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and starts the HTTP server.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.MetadataStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ContentStoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.ChapterIndexHandle](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*service.BookService](injector)
	_ = do.MustInvoke[*service.ChapterService](injector)
	_ = do.MustInvoke[*service.VolumeService](injector)
	_ = do.MustInvoke[*service.ReferenceService](injector)

	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}

	providers.TriggerReindexIfNeeded(injector)
	return nil
}
