package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/quillpress/quill-server/internal/metrics"
)

// Toucher advances an ancestor's date_updated without rewriting the row.
type Toucher interface {
	TouchVolume(ctx context.Context, id string, at time.Time) error
	TouchBook(ctx context.Context, id string, at time.Time) error
}

// Outcome reports which ancestors a write failed to bump. A stale ancestor
// keeps its previous date_updated until the next successful descendant
// write; the primary write has still succeeded.
type Outcome struct {
	StaleVolume bool `json:"stale_volume,omitempty"`
	StaleBook   bool `json:"stale_book,omitempty"`
}

// Stale reports whether any step failed.
func (o Outcome) Stale() bool {
	return o.StaleVolume || o.StaleBook
}

// Propagator bumps ancestor timestamps after a descendant write.
//
// Propagation runs after the descendant write has committed and is not
// atomic with it. Between the write and the last step, readers can see a
// chapter newer than its volume or a volume newer than its book. Each step
// is independent: a failed volume touch does not skip the book touch.
type Propagator struct {
	ancestors Toucher
	logger    *slog.Logger
}

// NewPropagator creates a propagator writing through ancestors.
func NewPropagator(ancestors Toucher, logger *slog.Logger) *Propagator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Propagator{ancestors: ancestors, logger: logger}
}

// FromChapter bumps each of volumeIDs and then bookID to at.
func (p *Propagator) FromChapter(ctx context.Context, bookID string, at time.Time, volumeIDs ...string) Outcome {
	var out Outcome
	for _, volumeID := range volumeIDs {
		if err := p.ancestors.TouchVolume(ctx, volumeID, at); err != nil {
			p.fail(ctx, "volume", volumeID, err)
			out.StaleVolume = true
		}
	}
	if !p.touchBook(ctx, bookID, at) {
		out.StaleBook = true
	}
	return out
}

// FromVolume bumps bookID to at.
func (p *Propagator) FromVolume(ctx context.Context, bookID string, at time.Time) Outcome {
	return Outcome{StaleBook: !p.touchBook(ctx, bookID, at)}
}

func (p *Propagator) touchBook(ctx context.Context, bookID string, at time.Time) bool {
	if err := p.ancestors.TouchBook(ctx, bookID, at); err != nil {
		p.fail(ctx, "book", bookID, err)
		return false
	}
	return true
}

func (p *Propagator) fail(ctx context.Context, ancestor, id string, err error) {
	metrics.PropagationFailures.WithLabelValues(ancestor).Inc()
	p.logger.WarnContext(ctx, "timestamp propagation failed",
		"ancestor", ancestor,
		"id", id,
		"error", err,
	)
}
