package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/store"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"not found", store.ErrNotFound, domerrors.ErrNotFound},
		{"unavailable", store.ErrUnavailable.WithCause(errors.New("busy")), domerrors.ErrStoreUnavailable},
		{"duplicate permalink", store.ErrDuplicatePermalink, domerrors.ErrConflict},
		{"duplicate number", store.ErrDuplicateNumber, domerrors.ErrConflict},
		{"already exists", store.ErrAlreadyExists, domerrors.ErrConflict},
		{"invalid reference", store.ErrInvalidReference, domerrors.ErrValidation},
		{"unknown", errors.New("disk on fire"), domerrors.ErrInternal},
		{"domain error passes", domerrors.Validation("bad"), domerrors.ErrValidation},
		{"cancellation passes", context.Canceled, context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tt.in, "thing"), tt.want)
		})
	}

	assert.NoError(t, translate(nil, "thing"))
	assert.EqualError(t, translate(store.ErrNotFound, "volume"), "volume not found")
}
