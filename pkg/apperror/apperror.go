// Package apperror carries the typed failure taxonomy surfaced by the
// core services. Handlers map the kind to an HTTP status; the message
// is the human-readable description of the violated precondition.
package apperror

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	KindInvalidArgument Kind = iota + 1 // missing field, out-of-range value, bad enum
	KindNotFound                        // entity id does not resolve
	KindForbidden                       // actor lacks the required relationship to the project
	KindConflict                        // role taken, duplicate membership, duplicate enrollment
	KindFailedPrecondition              // state does not allow the operation (e.g. launch gating)
	KindInternal                        // persistence failure
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error, typically a gorm error.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind of err, defaulting to KindInternal for
// untyped errors so persistence failures map to 500.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
