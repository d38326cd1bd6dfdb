// Package apperr defines the error taxonomy shared across the dispatch core.
// Every component boundary converts its
// lower-level errors (pgx, redis, HTTP) into one of these kinds so that
// handlers have a single, uniform way to pick an HTTP status and a
// safe-to-surface message.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind enumerates the closed set of error kinds.
type Kind string

const (
	KindInvalidInput          Kind = "invalid_input"
	KindUnauthorized          Kind = "unauthorized"
	KindForbidden             Kind = "forbidden"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindDependencyUnavailable Kind = "dependency_unavailable"
	KindRateLimited           Kind = "rate_limited"
	KindInternal              Kind = "internal"
)

// Error is a typed error carrying an HTTP-facing kind, a safe message, and
// an optional field path for validation failures.
type Error struct {
	Kind    Kind
	Message string
	Field   string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Status maps a Kind to its coarse HTTP status class.
func (e *Error) Status() int {
	switch e.Kind {
	case KindInvalidInput:
		return http.StatusUnprocessableEntity
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func new(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}

func InvalidInput(field, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg, Field: field}
}
func Unauthorized(msg string) *Error { return new(KindUnauthorized, msg, nil) }
func Forbidden(msg string) *Error    { return new(KindForbidden, msg, nil) }
func NotFound(msg string) *Error     { return new(KindNotFound, msg, nil) }
func Conflict(msg string) *Error     { return new(KindConflict, msg, nil) }
func RateLimited(msg string) *Error  { return new(KindRateLimited, msg, nil) }

func DependencyUnavailable(msg string, cause error) *Error {
	return new(KindDependencyUnavailable, msg, cause)
}

// Internal wraps cause as an Internal error. The cause is logged by the
// caller with full context; it must never be included in Message since
// Message crosses the HTTP boundary unmodified.
func Internal(msg string, cause error) *Error {
	return new(KindInternal, msg, cause)
}

// As extracts an *Error from err, following the same convention as errors.As.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, else KindInternal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
