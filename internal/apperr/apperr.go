// Package apperr defines the engine error kinds and their HTTP status mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindIllegalArgument
	KindNotFound
	KindConflict
	KindForbidden
	KindUnsupportedMediaType
)

func (k Kind) String() string {
	switch k {
	case KindIllegalArgument:
		return "IllegalArgument"
	case KindNotFound:
		return "NotFound"
	case KindConflict:
		return "Conflict"
	case KindForbidden:
		return "Forbidden"
	case KindUnsupportedMediaType:
		return "UnsupportedMediaType"
	default:
		return "Internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func IllegalArgument(format string, args ...any) error {
	return newf(KindIllegalArgument, format, args...)
}

func NotFound(format string, args ...any) error { return newf(KindNotFound, format, args...) }

func Conflict(format string, args ...any) error { return newf(KindConflict, format, args...) }

func Forbidden(format string, args ...any) error { return newf(KindForbidden, format, args...) }

func UnsupportedMediaType(format string, args ...any) error {
	return newf(KindUnsupportedMediaType, format, args...)
}

// Wrap attaches a kind to an underlying error, keeping it reachable for errors.Is.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost *Error in the chain, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsIllegalArgument(err error) bool { return KindOf(err) == KindIllegalArgument }
func IsNotFound(err error) bool        { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool        { return KindOf(err) == KindConflict }

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindIllegalArgument:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
