// Package apperr defines the error taxonomy shared by stores, services and
// the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a row is absent after tenant scoping.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned by stores when a conditional update matched no row.
var ErrConflict = errors.New("conflict: resource was modified by another request")

type Kind string

const (
	KindInternal      Kind = "internal"
	KindNotFound      Kind = "not_found"
	KindForbidden     Kind = "forbidden"
	KindBusinessRule  Kind = "business_rule"
	KindValidation    Kind = "validation"
	KindConflict      Kind = "conflict"
	KindConfiguration Kind = "configuration"
)

// Error is an expected, user-facing failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound reports a missing entity. The message never says whether the row
// exists in another organization.
func NotFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found", Err: ErrNotFound}
}

func Forbidden() *Error {
	return &Error{Kind: KindForbidden, Message: "forbidden"}
}

func BusinessRule(format string, args ...any) *Error {
	return newf(KindBusinessRule, format, args...)
}

func Validation(format string, args ...any) *Error {
	return newf(KindValidation, format, args...)
}

func Configuration(format string, args ...any) *Error {
	return newf(KindConfiguration, format, args...)
}

// KindOf classifies any error. Unknown errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Message returns the user-facing message for err. Internal errors are masked.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Kind == KindInternal {
			return "internal error"
		}
		return e.Message
	}
	switch KindOf(err) {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "resource was modified by another request"
	}
	return "internal error"
}

// MapNotFound converts a store ErrNotFound into a typed NotFound for resource.
func MapNotFound(err error, resource string) error {
	if errors.Is(err, ErrNotFound) {
		return NotFound(resource)
	}
	return err
}
