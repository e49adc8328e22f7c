package service

import (
	"context"
	"errors"

	domerrors "github.com/quillpress/quill-server/internal/errors"
	"github.com/quillpress/quill-server/internal/store"
)

// translate maps store sentinels onto domain errors. what names the entity
// for not-found messages ("book", "chapter").
func translate(err error, what string) error {
	if err == nil {
		return nil
	}

	var de *domerrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, store.ErrNotFound):
		return domerrors.NotFound(what + " not found")
	case errors.Is(err, store.ErrUnavailable):
		return domerrors.StoreUnavailable(err)
	case errors.Is(err, store.ErrDuplicatePermalink):
		return domerrors.Conflict("permalink already taken")
	case errors.Is(err, store.ErrDuplicateNumber):
		return domerrors.Conflict("chapter number already taken")
	case errors.Is(err, store.ErrAlreadyExists):
		return domerrors.Conflictf("%s already exists", what)
	case errors.Is(err, store.ErrInvalidReference):
		return domerrors.Wrap(err, domerrors.CodeValidation, "referenced entity does not exist")
	default:
		return domerrors.Wrapf(err, domerrors.CodeInternal, "%s store failure", what)
	}
}
