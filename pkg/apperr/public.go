package apperr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

var publicMessages = map[Kind]string{
	KindValidation:  "the request was rejected as invalid",
	KindDataAccess:  "table metadata could not be read",
	KindCompression: "the compression operation failed",
	KindResource:    "the database is busy, retry later",
	KindConflict:    "another operation is already running for this table",
	KindNotFound:    "the requested item was not found",
	KindInternal:    "an internal error occurred",
}

// PublicError is what crosses a boundary exposed to untrusted callers:
// a reference id and a generic category, never raw database text.
type PublicError struct {
	Reference string
	Kind      Kind
	Message   string
}

func (e *PublicError) Error() string {
	return fmt.Sprintf("%s (ref %s)", e.Message, e.Reference)
}

// Public logs the detailed error under a fresh reference id and returns
// the sanitized form. Validation messages are kept because they only
// describe the caller's own input.
func Public(ctx context.Context, logger *slog.Logger, err error) *PublicError {
	if err == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	ref := uuid.New().String()
	kind := KindOf(err)

	logger.ErrorContext(ctx, "operation failed",
		"reference", ref,
		"kind", kind,
		"error", err.Error(),
	)

	msg := publicMessages[kind]
	if kind == KindValidation {
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			msg = fmt.Sprintf("%s: %v", msg, e.Err)
		}
	}
	return &PublicError{Reference: ref, Kind: kind, Message: msg}
}
