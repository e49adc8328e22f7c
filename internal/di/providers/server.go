package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/quillpress/quill-server/internal/api"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/service"
)

// Version is reported in the OpenAPI document.
var Version = "dev"

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	api *api.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer h.api.Close()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server and starts listening.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	meta := do.MustInvoke[*MetadataStoreHandle](i)
	index := do.MustInvoke[*ChapterIndexHandle](i)

	services := &api.Services{
		Books:     do.MustInvoke[*service.BookService](i),
		Volumes:   do.MustInvoke[*service.VolumeService](i),
		Chapters:  do.MustInvoke[*service.ChapterService](i),
		Reference: do.MustInvoke[*service.ReferenceService](i),
	}

	apiServer := api.NewServer(api.Config{
		Title:          "Quill API",
		Version:        Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		WriteRPS:       cfg.RateLimit.RPS,
		WriteBurst:     cfg.RateLimit.Burst,
	}, services, api.Probes{
		Metadata: meta.Store,
		Index:    index.ChapterIndex,
	}, log.Logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv, api: apiServer}, nil
}
