// Package main seeds a Quill data directory with sample books, volumes and
// chapters, or rebuilds its chapter index.
//
// It reads the same configuration as the server (flags, environment, .env),
// so chapters land in the configured content backend.
//
// Usage:
//
//	go run ./cmd/seed --data-path ~/Quill/data --books 5 --chapters 12
//	go run ./cmd/seed --content-backend dynamodb --dynamo-table chapters --reindex-only
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/quillpress/quill-server/internal/cache"
	"github.com/quillpress/quill-server/internal/config"
	"github.com/quillpress/quill-server/internal/di/providers"
	"github.com/quillpress/quill-server/internal/domain"
	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/logger"
	"github.com/quillpress/quill-server/internal/search"
	"github.com/quillpress/quill-server/internal/service"
	"github.com/quillpress/quill-server/internal/store/sqlite"
)

var (
	seedFlags   = pflag.NewFlagSet("seed", pflag.ContinueOnError)
	bookCount   = seedFlags.IntP("books", "b", 3, "Books to create")
	volumeCount = seedFlags.IntP("volumes", "v", 2, "Volumes per book")
	chapterCnt  = seedFlags.IntP("chapters", "c", 8, "Chapters per volume")
	reindexOnly = seedFlags.Bool("reindex-only", false, "Only rebuild the chapter index from stored chapters")
)

var (
	titleWords = []string{"Ember", "Glass", "Harbor", "Road", "Lantern", "Tide", "Crown", "Salt", "Ash", "River"}
	genreNames = []string{"Fantasy", "Science Fiction", "Mystery", "Romance"}
	statuses   = []string{"ongoing", "completed", "hiatus"}
	sentences  = []string{
		"The lanterns along the harbor flickered out one by one.",
		"Nobody on the road had seen a caravan in three days.",
		"She counted the coins twice and still came up short.",
		"Salt crusted the window where the tide had reached it.",
		"The crown was lighter than he had expected.",
		"Ash fell softly over the river like early snow.",
	}
)

func main() {
	cfg, err := config.Load(os.Args[1:], seedFlags)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	lg := logger.New(logger.Config{Level: logger.ParseLevel(cfg.Logger.Level), Format: "pretty"})
	dataPath := cfg.Storage.DataPath

	if err := os.MkdirAll(dataPath, 0o750); err != nil {
		log.Fatalf("Failed to create data path: %v", err)
	}

	meta, err := sqlite.Open(filepath.Join(dataPath, "quill.db"), lg.Logger)
	if err != nil {
		log.Fatalf("Failed to open metadata store: %v", err)
	}
	defer meta.Close()

	content, err := providers.OpenContentStore(context.Background(), cfg, lg.Logger)
	if err != nil {
		log.Fatalf("Failed to open content store: %v", err)
	}
	defer content.Close()

	index, err := search.NewChapterIndex(search.Options{DataPath: dataPath, Logger: lg.Logger})
	if err != nil {
		log.Fatalf("Failed to open chapter index: %v", err)
	}
	defer index.Close()

	ctx := context.Background()

	if *reindexOnly {
		n, err := service.ReindexChapters(ctx, meta, content, index, lg.Logger)
		if err != nil {
			log.Fatalf("Reindex failed: %v", err)
		}
		fmt.Printf("Indexed %d chapters\n", n)
		return
	}

	svcCfg := service.Config{MaxAttempts: cfg.Write.MaxAttempts}
	prop := service.NewPropagator(meta, lg.Logger)
	books := service.NewBookService(meta, cache.Noop{}, svcCfg, lg.Logger)
	chapters := service.NewChapterService(content, meta, prop, index, cache.Noop{}, svcCfg, lg.Logger)
	volumes := service.NewVolumeService(meta, books, chapters, prop, lg.Logger)
	refs := service.NewReferenceService(meta, cache.Noop{}, svcCfg, lg.Logger)

	genreIDs := seedGenres(ctx, refs)
	statusIDs := seedStatuses(ctx, refs)

	rng := rand.New(rand.NewPCG(uint64(len(dataPath)), 42))
	created := 0
	for b := range *bookCount {
		req := service.CreateBookRequest{
			Title:       randomTitle(rng),
			Description: randomText(rng, 3),
			Author:      fmt.Sprintf("Author %d", b+1),
		}
		if len(genreIDs) > 0 {
			req.GenreIDs = []string{genreIDs[rng.IntN(len(genreIDs))]}
		}
		if len(statusIDs) > 0 {
			req.StatusID = statusIDs[rng.IntN(len(statusIDs))]
		}

		book, err := books.CreateBook(ctx, req)
		if err != nil {
			log.Fatalf("Failed to create book: %v", err)
		}
		fmt.Printf("Book %q (%s)\n", book.Title, book.Permalink)

		for v := range *volumeCount {
			vol, _, err := volumes.CreateVolume(ctx, service.CreateVolumeRequest{
				BookID: book.ID,
				Name:   fmt.Sprintf("Volume %d", v+1),
			})
			if err != nil {
				log.Fatalf("Failed to create volume: %v", err)
			}
			for range *chapterCnt {
				ch, out, err := chapters.CreateChapter(ctx, service.CreateChapterRequest{
					BookID:   book.ID,
					VolumeID: vol.ID,
					Name:     randomTitle(rng),
					Content:  randomText(rng, 12),
				})
				if err != nil {
					log.Fatalf("Failed to create chapter: %v", err)
				}
				if out.Stale() {
					fmt.Printf("  chapter %d left stale ancestors\n", ch.Number)
				}
				created++
			}
		}
	}

	fmt.Printf("\nCreated %d books and %d chapters in %s (%s content)\n", *bookCount, created, dataPath, cfg.Content.Backend)
}

func seedGenres(ctx context.Context, refs *service.ReferenceService) []string {
	err := createMissing(genreNames, func(name string) error {
		_, err := refs.CreateGenre(ctx, service.CreateGenreRequest{Name: name})
		return err
	})
	if err != nil {
		log.Fatalf("Failed to create genres: %v", err)
	}
	genres, err := refs.ListGenres(ctx)
	if err != nil {
		log.Fatalf("Failed to list genres: %v", err)
	}
	return ids(genres, func(g *domain.Genre) string { return g.ID })
}

func seedStatuses(ctx context.Context, refs *service.ReferenceService) []string {
	err := createMissing(statuses, func(name string) error {
		_, err := refs.CreateStatus(ctx, service.CreateStatusRequest{Name: name})
		return err
	})
	if err != nil {
		log.Fatalf("Failed to create statuses: %v", err)
	}
	all, err := refs.ListStatuses(ctx)
	if err != nil {
		log.Fatalf("Failed to list statuses: %v", err)
	}
	return ids(all, func(s *domain.Status) string { return s.ID })
}

// createMissing calls create for each name. Conflicts mean the name already
// exists and are skipped; any other error stops the run.
func createMissing(names []string, create func(name string) error) error {
	for _, name := range names {
		if err := create(name); err != nil && !errors.Is(err, domerrors.ErrConflict) {
			return fmt.Errorf("create %q: %w", name, err)
		}
	}
	return nil
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}

func randomTitle(rng *rand.Rand) string {
	return "The " + titleWords[rng.IntN(len(titleWords))] + " " + titleWords[rng.IntN(len(titleWords))]
}

func randomText(rng *rand.Rand, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = sentences[rng.IntN(len(sentences))]
	}
	return strings.Join(parts, " ")
}
