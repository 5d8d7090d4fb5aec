package service

import (
	"context"
	"errors"

	domainerrors "github.com/tagboxapp/tagbox-server/internal/errors"
	"github.com/tagboxapp/tagbox-server/internal/store"
)

// translateErr maps an error leaving a unit of work onto the domain taxonomy.
// Domain errors raised inside the unit of work pass through untouched;
// a bare store.ErrNotFound becomes NotFound(notFoundMsg).
func translateErr(err error, notFoundMsg string) error {
	if err == nil {
		return nil
	}

	var domainErr *domainerrors.Error
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var storeErr *store.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound(notFoundMsg)
	case errors.As(err, &storeErr) && storeErr.Retryable():
		return domainerrors.Transient(err)
	case errors.Is(err, context.DeadlineExceeded):
		return domainerrors.Transient(err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "internal error")
	}
}

// notFound turns a store miss into NotFound(msg) and leaves other errors alone.
// Used inside units of work so each lookup reports what was missing.
func notFound(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return domainerrors.NotFound(msg)
	}
	return err
}
