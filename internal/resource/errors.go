package resource

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Kind classifies every non-success outcome of a resource operation.
type Kind int

const (
	// KindBadRequest: malformed shaping input or invalid payload.
	KindBadRequest Kind = iota + 1
	// KindForbidden: an authorization hook denied the operation.
	KindForbidden
	// KindNotFound: no row visible to the caller.
	KindNotFound
	// KindConflict: uniqueness violation on create.
	KindConflict
	// KindGone: the row exists but is not writable — soft-deleted, or the
	// concurrency token no longer matches.
	KindGone
	// KindFatal: unexpected store failure. Logged, never retried here, and
	// never detailed to the caller.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindBadRequest:
		return "bad_request"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindGone:
		return "gone"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

// Error is the typed failure every service operation returns. Reason is
// short and safe to show callers; Err carries the underlying store error
// for logging and is only set on KindFatal.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func BadRequest(reason string) *Error { return &Error{Kind: KindBadRequest, Reason: reason} }
func Forbidden(reason string) *Error  { return &Error{Kind: KindForbidden, Reason: reason} }
func NotFound(reason string) *Error   { return &Error{Kind: KindNotFound, Reason: reason} }
func Conflict(reason string) *Error   { return &Error{Kind: KindConflict, Reason: reason} }
func Gone(reason string) *Error       { return &Error{Kind: KindGone, Reason: reason} }

func Fatal(err error) *Error {
	return &Error{Kind: KindFatal, Reason: "internal error", Err: err}
}

// ClassifyCommit maps a store commit error onto the taxonomy: duplicate key
// becomes Conflict, anything else Fatal.
func ClassifyCommit(err error) *Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return Conflict("duplicate resource")
	}
	return Fatal(err)
}
