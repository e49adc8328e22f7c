// Package pagination pages ordered result sets in memory and serves pages
// through the read-through cache.
//
// The content store has no offset pagination, so every uncached page of a
// chapter list costs a full scan of the book's partition.
package pagination

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/quillpress/quill-server/internal/cache"
	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/metrics"
)

// Bounds are the default and maximum page sizes of one listing.
type Bounds struct {
	Default int
	Max     int
}

// Params selects one page. Page is 1-based.
type Params struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Offset is the number of items before the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Normalize validates page and resolves pageSize against b: a zero size takes
// the default and an oversized one is clamped to the maximum.
func (b Bounds) Normalize(page, pageSize int) (Params, error) {
	if page < 1 {
		return Params{}, domerrors.FieldError("page", "must be at least 1")
	}
	if pageSize < 0 {
		return Params{}, domerrors.FieldError("page_size", "must not be negative")
	}
	if pageSize == 0 {
		pageSize = b.Default
	}
	if b.Max > 0 && pageSize > b.Max {
		pageSize = b.Max
	}
	return Params{Page: page, PageSize: pageSize}, nil
}

// Page is one window of an ordered list.
type Page[T any] struct {
	Items       []T  `json:"items"`
	Total       int  `json:"total"`
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// Slice cuts page p out of items. A page past the end has no items but
// still reports the total.
func Slice[T any](items []T, p Params) Page[T] {
	total := len(items)
	out := Page[T]{
		Items:       []T{},
		Total:       total,
		Page:        p.Page,
		PageSize:    p.PageSize,
		HasPrevious: p.Page > 1,
	}
	if p.PageSize <= 0 {
		return out
	}
	out.TotalPages = (total + p.PageSize - 1) / p.PageSize

	start := (p.Page - 1) * p.PageSize
	if start >= total {
		return out
	}
	end := min(start+p.PageSize, total)

	out.Items = append(out.Items, items[start:end]...)
	out.HasNext = end < total
	return out
}

// Window builds the page for items already cut out of a list of total
// entries by the store.
func Window[T any](items []T, total int, p Params) Page[T] {
	if items == nil {
		items = []T{}
	}
	out := Page[T]{
		Items:       items,
		Total:       total,
		Page:        p.Page,
		PageSize:    p.PageSize,
		HasPrevious: p.Page > 1,
	}
	if p.PageSize > 0 {
		out.TotalPages = (total + p.PageSize - 1) / p.PageSize
		out.HasNext = p.Offset()+len(items) < total
	}
	return out
}

// Empty is the page returned for an unknown scope.
func Empty[T any](p Params) Page[T] {
	return Slice[T](nil, p)
}

// Key builds "<kind>:<scope>:<id>:<page>:<size>", with ":v<version>" appended
// when version is non-empty.
func Key(kind, scope, id string, p Params, version string) string {
	k := kind + ":" + scope + ":" + id + ":" + strconv.Itoa(p.Page) + ":" + strconv.Itoa(p.PageSize)
	if version != "" {
		k += ":v" + version
	}
	return k
}

// Pager serves pages cache-through. Cache failures are logged and counted
// but never fail a read.
type Pager struct {
	cache  cache.Cache
	name   string
	ttl    time.Duration
	logger *slog.Logger
}

// NewPager creates a pager whose entries live for ttl. name labels its metrics.
func NewPager(c cache.Cache, name string, ttl time.Duration, logger *slog.Logger) *Pager {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager{cache: c, name: name, ttl: ttl, logger: logger}
}

// Fetch returns the page stored under key, or loads the full ordered list,
// slices page p out of it and stores the page.
//
// Concurrent misses on one key both load and both store; the last write wins.
func Fetch[T any](ctx context.Context, pg *Pager, key string, p Params, load func(context.Context) ([]T, error)) (Page[T], error) {
	return Cached(ctx, pg, key, func(ctx context.Context) (Page[T], error) {
		items, err := load(ctx)
		if err != nil {
			return Page[T]{}, err
		}
		return Slice(items, p), nil
	})
}

// Cached returns the page stored under key, or builds it with load and
// stores it.
func Cached[T any](ctx context.Context, pg *Pager, key string, load func(context.Context) (Page[T], error)) (Page[T], error) {
	cached, ok, err := cache.GetJSON[Page[T]](ctx, pg.cache, key)
	switch {
	case err != nil:
		metrics.CacheRequests.WithLabelValues(pg.name, "error").Inc()
		pg.logger.Warn("page cache read failed", "cache", pg.name, "key", key, "error", err)
	case ok:
		metrics.CacheRequests.WithLabelValues(pg.name, "hit").Inc()
		return cached, nil
	default:
		metrics.CacheRequests.WithLabelValues(pg.name, "miss").Inc()
	}

	page, err := load(ctx)
	if err != nil {
		return Page[T]{}, err
	}

	if err := cache.SetJSON(ctx, pg.cache, key, page, pg.ttl); err != nil {
		pg.logger.Warn("page cache write failed", "cache", pg.name, "key", key, "error", err)
	}
	return page, nil
}
