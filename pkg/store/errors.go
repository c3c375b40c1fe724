package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Error classes surfaced by every store operation. Callers distinguish
// them with errors.Is; the HTTP layer maps them to status codes.
var (
	// ErrBusy means the store handle could not be acquired (or the write
	// lock was contended) within the allowed wait. Transient; the caller
	// decides whether to retry.
	ErrBusy = errors.New("store busy")

	// ErrConstraint is a foreign-key or uniqueness violation not covered
	// by insert-or-ignore. It indicates a logic error, not bad input.
	ErrConstraint = errors.New("constraint violation")

	// ErrBadParam marks an unparsable query parameter (subject kind,
	// relation kind, date). Reported before any query is attempted.
	ErrBadParam = errors.New("bad parameter")
)

// mapErr classifies low-level sqlite and context failures into the
// store error taxonomy, keeping the original error in the chain.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, ErrBusy, err)
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch serr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w: %v", op, ErrBusy, err)
		case sqlite3.ErrConstraint:
			return fmt.Errorf("%s: %w: %v", op, ErrConstraint, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
