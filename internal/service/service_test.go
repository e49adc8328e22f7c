package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quillpress/quill-server/internal/cache"
	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/search"
	"github.com/quillpress/quill-server/internal/store"
	"github.com/quillpress/quill-server/internal/store/sqlite"
)

// clock hands out strictly increasing instants, one second apart.
type clock struct {
	mu sync.Mutex
	at time.Time
}

func newClock() *clock {
	return &clock{at: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(time.Second)
	return c.at
}

type testEnv struct {
	meta     *sqlite.Store
	content  *store.Store
	index    *search.ChapterIndex
	cache    *cache.Ristretto
	clock    *clock
	prop     *Propagator
	books    *BookService
	chapters *ChapterService
	volumes  *VolumeService
	refs     *ReferenceService
}

// setupTestEnv wires every service over a temp SQLite metadata store, an
// in-memory Badger content store and an in-memory chapter index.
func setupTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	meta, err := sqlite.Open(filepath.Join(t.TempDir(), "meta.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = meta.Close() })

	content, err := store.NewInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = content.Close() })

	index, err := search.NewMemChapterIndex(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	c, err := cache.NewRistretto(cache.Config{MaxCost: 1 << 22})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	env := &testEnv{
		meta:    meta,
		content: content,
		index:   index,
		cache:   c,
		clock:   newClock(),
	}
	env.prop = NewPropagator(meta, nil)
	env.books = NewBookService(meta, c, cfg, nil)
	env.books.now = env.clock.Now
	env.chapters = NewChapterService(content, meta, env.prop, index, c, cfg, nil)
	env.chapters.now = env.clock.Now
	env.volumes = NewVolumeService(meta, env.books, env.chapters, env.prop, nil)
	env.volumes.now = env.clock.Now
	env.refs = NewReferenceService(meta, c, cfg, nil)
	return env
}

func (e *testEnv) createBook(t *testing.T, title string) *domain.Book {
	t.Helper()
	b, err := e.books.CreateBook(context.Background(), CreateBookRequest{Title: title, Description: "a tale"})
	require.NoError(t, err)
	return b
}

func (e *testEnv) createVolume(t *testing.T, bookID, name string) *domain.Volume {
	t.Helper()
	v, out, err := e.volumes.CreateVolume(context.Background(), CreateVolumeRequest{BookID: bookID, Name: name})
	require.NoError(t, err)
	require.False(t, out.Stale())
	return v
}

func (e *testEnv) createChapter(t *testing.T, vol *domain.Volume, name, content string) *domain.Chapter {
	t.Helper()
	ch, out, err := e.chapters.CreateChapter(context.Background(), CreateChapterRequest{
		BookID:   vol.BookID,
		VolumeID: vol.ID,
		Name:     name,
		Content:  content,
	})
	require.NoError(t, err)
	require.False(t, out.Stale())
	return ch
}
