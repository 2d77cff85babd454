// Package apperr defines the error kinds returned by the scheduling core.
//
// Every component returns *Error values (possibly wrapped). Shells inspect
// them with errors.Is against the kind sentinels or with KindOf.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindConflict    Kind = "conflict"
	KindCapacity    Kind = "capacity"
	KindUnavailable Kind = "unavailable"
	KindPersistence Kind = "persistence"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation  = &Error{Kind: KindValidation}
	ErrNotFound    = &Error{Kind: KindNotFound}
	ErrConflict    = &Error{Kind: KindConflict}
	ErrCapacity    = &Error{Kind: KindCapacity}
	ErrUnavailable = &Error{Kind: KindUnavailable}
	ErrPersistence = &Error{Kind: KindPersistence}
)

// Error is a classified failure. Op names the operation ("tasks.create").
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches kind sentinels (errors with no Op, Msg or Err).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op == "" && t.Msg == "" && t.Err == nil {
		return e.Kind == t.Kind
	}
	return e == t
}

func newf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...any) error {
	return newf(KindValidation, op, format, args...)
}

func NotFound(op, format string, args ...any) error {
	return newf(KindNotFound, op, format, args...)
}

func Conflict(op, format string, args ...any) error {
	return newf(KindConflict, op, format, args...)
}

func Capacity(op, format string, args ...any) error {
	return newf(KindCapacity, op, format, args...)
}

func Unavailable(op, format string, args ...any) error {
	return newf(KindUnavailable, op, format, args...)
}

// Persistence wraps a storage failure. Already-classified errors pass through.
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	return &Error{Kind: KindPersistence, Op: op, Msg: "store failed", Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
