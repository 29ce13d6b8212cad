// Package apperr defines the error taxonomy shared by the advisor components.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure
type Kind string

const (
	KindValidation  Kind = "VALIDATION"
	KindDataAccess  Kind = "DATA_ACCESS"
	KindCompression Kind = "COMPRESSION"
	KindResource    Kind = "RESOURCE"
	KindConflict    Kind = "CONFLICT"
	KindNotFound    Kind = "NOT_FOUND"
	KindInternal    Kind = "INTERNAL"
)

// Sentinels for errors.Is checks
var (
	ErrValidation  = errors.New("validation failed")
	ErrDataAccess  = errors.New("data access failed")
	ErrCompression = errors.New("compression failed")
	ErrResource    = errors.New("resource unavailable")
	ErrConflict    = errors.New("conflicting operation")
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
)

var sentinels = map[Kind]error{
	KindValidation:  ErrValidation,
	KindDataAccess:  ErrDataAccess,
	KindCompression: ErrCompression,
	KindResource:    ErrResource,
	KindConflict:    ErrConflict,
	KindNotFound:    ErrNotFound,
	KindInternal:    ErrInternal,
}

// Error carries enough structured context to act on a failure.
// RollbackErr is set only on the compression path when the rollback
// itself failed; both errors are kept.
type Error struct {
	Kind      Kind
	Op        string
	Schema    string
	Table     string
	Step      string
	Code      string // vendor error code, e.g. ORA-00054
	Transient bool
	Err       error

	RollbackErr error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Schema != "" || e.Table != "" {
		fmt.Fprintf(&b, " [%s.%s]", e.Schema, e.Table)
	}
	if e.Step != "" {
		fmt.Fprintf(&b, " step=%s", e.Step)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " code=%s", e.Code)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	if e.RollbackErr != nil {
		fmt.Fprintf(&b, " (rollback failed: %v)", e.RollbackErr)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.RollbackErr != nil {
		errs = append(errs, e.RollbackErr)
	}
	return errs
}

// Validation builds a VALIDATION error
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: fmt.Errorf(format, args...)}
}

// DataAccess wraps a metadata provider failure
func DataAccess(op string, err error, transient bool) *Error {
	return &Error{Kind: KindDataAccess, Op: op, Err: err, Transient: transient}
}

// Resource wraps a pool exhaustion or acquisition timeout
func Resource(op string, err error) *Error {
	return &Error{Kind: KindResource, Op: op, Err: err, Transient: true}
}

// Conflict reports a request that collides with an in-flight operation
func Conflict(op, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Err: fmt.Errorf(format, args...)}
}

// NotFound reports a missing execution, table or record
func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in the chain, or INTERNAL
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports transient data access and resource errors
func IsRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Kind {
	case KindResource:
		return true
	case KindDataAccess:
		return e.Transient
	}
	return false
}

// IsValidation reports a VALIDATION error
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsConflict reports a CONFLICT error
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound reports a NOT_FOUND error
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
