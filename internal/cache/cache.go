// Package cache is the read-through page cache. Values are opaque bytes
// with a TTL; nothing is invalidated on write, so a cached page may be stale
// until it expires.
package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/ristretto/v2"
)

// Cache stores opaque values with a TTL. Implementations must be safe for
// concurrent use. Concurrent Sets on one key are last-write-wins.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config sizes the in-process cache.
type Config struct {
	MaxCost int64 // total bytes of cached values
}

// Ristretto is an in-process Cache.
type Ristretto struct {
	c *ristretto.Cache[string, []byte]
}

var _ Cache = (*Ristretto)(nil)

// NewRistretto creates an in-process cache bounded by cfg.MaxCost bytes.
func NewRistretto(cfg Config) (*Ristretto, error) {
	maxCost := cfg.MaxCost
	if maxCost <= 0 {
		maxCost = 64 << 20
	}

	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		// Ten counters per expected item; assume ~1 KiB compressed pages.
		NumCounters: max(maxCost/1024*10, 1000),
		MaxCost:     maxCost,
		BufferItems: 64,
		Cost: func(v []byte) int64 {
			return int64(len(v))
		},
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c}, nil
}

// Get implements Cache.
func (r *Ristretto) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := r.c.Get(key)
	return v, ok, nil
}

// Set implements Cache. The write is applied before Set returns, so a Get
// that follows it observes the value unless admission rejected it.
func (r *Ristretto) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	r.c.SetWithTTL(key, value, 0, ttl)
	r.c.Wait()
	return nil
}

// Close stops the cache's background goroutines.
func (r *Ristretto) Close() {
	r.c.Close()
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// HashKey builds "<prefix>:<hex xxhash of parts>". Parts are separated by
// a NUL byte so ("ab", "c") and ("a", "bc") hash differently.
func HashKey(prefix string, parts ...string) string {
	d := xxhash.New()
	for _, p := range parts {
		_, _ = d.WriteString(p)
		_, _ = d.Write([]byte{0})
	}
	return prefix + ":" + strconv.FormatUint(d.Sum64(), 16)
}
