package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/quillpress/quill-server/internal/domain"
	"github.com/quillpress/quill-server/internal/store"
)

func makeVolume(id, bookID, name string, d int) *domain.Volume {
	v := &domain.Volume{ID: id, BookID: bookID, Name: name}
	v.InitTimestamps(day(d))
	return v
}

func TestVolumes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createBook(t, s, makeBook("b1", "One", "Ana", day(1)))

	v2 := makeVolume("v2", "b1", "Second", 2)
	v1 := makeVolume("v1", "b1", "First", 1)
	for _, v := range []*domain.Volume{v2, v1} {
		if err := s.CreateVolume(ctx, v); err != nil {
			t.Fatalf("create volume: %v", err)
		}
	}

	got, err := s.GetVolume(ctx, "v1")
	if err != nil {
		t.Fatalf("get volume: %v", err)
	}
	if got.BookID != "b1" || got.Name != "First" {
		t.Errorf("unexpected volume: %+v", got)
	}

	list, err := s.ListVolumes(ctx, "b1")
	if err != nil {
		t.Fatalf("list volumes: %v", err)
	}
	if len(list) != 2 || list[0].ID != "v1" || list[1].ID != "v2" {
		t.Errorf("expected [v1 v2] in creation order, got %+v", list)
	}

	empty, err := s.ListVolumes(ctx, "unknown")
	if err != nil {
		t.Fatalf("list volumes: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", empty)
	}
}

func TestCreateVolume_UnknownBook(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateVolume(context.Background(), makeVolume("v1", "missing", "First", 1))
	if !errors.Is(err, store.ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
}

func TestGetVolume_NotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetVolume(context.Background(), "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateAndTouchVolume(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	createBook(t, s, makeBook("b1", "One", "Ana", day(1)))

	v := makeVolume("v1", "b1", "First", 1)
	if err := s.CreateVolume(ctx, v); err != nil {
		t.Fatalf("create volume: %v", err)
	}

	v.Name = "Renamed"
	v.BookID = "someone-else"
	v.Touch(day(3))
	if err := s.UpdateVolume(ctx, v); err != nil {
		t.Fatalf("update volume: %v", err)
	}
	if err := s.TouchVolume(ctx, "v1", day(2)); err != nil {
		t.Fatalf("touch volume: %v", err)
	}

	got, err := s.GetVolume(ctx, "v1")
	if err != nil {
		t.Fatalf("get volume: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("name = %q", got.Name)
	}
	if got.BookID != "b1" {
		t.Errorf("book_id changed to %q", got.BookID)
	}
	if !got.DateUpdated.Equal(day(3)) {
		t.Errorf("date_updated = %v, want %v", got.DateUpdated, day(3))
	}

	if err := s.TouchVolume(ctx, "missing", day(3)); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	missing := makeVolume("missing", "b1", "x", 1)
	if err := s.UpdateVolume(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
