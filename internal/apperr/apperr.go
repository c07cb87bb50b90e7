// Package apperr carries the error taxonomy shared by all services.
// Boundary layers switch on the kind to pick a user-facing status; inner
// layers only ever attach a kind and a message.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	InvalidArgument
	InsufficientStock
	Unauthorized
	Conflict
	Unavailable // lock wait exceeded or dependency busy; safe to retry
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidArgument:
		return "invalid_argument"
	case InsufficientStock:
		return "insufficient_stock"
	case Unauthorized:
		return "unauthorized"
	case Conflict:
		return "conflict"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

type Error struct {
	kind Kind
	msg  string
	err  error
}

func New(kind Kind, msg string) error {
	return &Error{kind: kind, msg: msg}
}

func Newf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: kind, msg: msg, err: err}
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Kind() Kind { return e.kind }

// KindOf walks the chain for the outermost *Error. Unknown errors are
// Internal: anything a service did not classify is a server fault.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.kind
	}
	return Internal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
