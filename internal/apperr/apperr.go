// Package apperr carries the error taxonomy shared by the API and the
// import worker. Handlers map kinds to HTTP statuses; the consumer maps
// kinds to ack/nack decisions instead of matching arbitrary error values.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for propagation decisions.
type Kind int

const (
	// KindInternal is a downstream I/O failure or unexpected condition.
	// Detail is logged, never surfaced to callers.
	KindInternal Kind = iota
	// KindBadRequest is malformed caller input; surfaced immediately,
	// never retried.
	KindBadRequest
	// KindNotFound is a referenced job or file that does not exist.
	KindNotFound
	// KindTransient is a downstream outage worth retrying.
	KindTransient
)

// Error is a kind-tagged error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BadRequest creates a client-input error.
func BadRequest(msg string) error {
	return &Error{Kind: KindBadRequest, Msg: msg}
}

// NotFound creates a missing-resource error.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// Transient wraps a retryable downstream failure.
func Transient(msg string, err error) error {
	return &Error{Kind: KindTransient, Msg: msg, Err: err}
}

// Internal wraps an unexpected failure with a user-safe message.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Msg: msg, Err: err}
}

// KindOf extracts the kind of an error. Untagged errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// HTTPStatus maps an error kind to an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns a message safe to return to callers. Internal and
// transient detail is replaced with a generic message.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindBadRequest, KindNotFound:
			return e.Msg
		}
	}
	return "internal server error"
}
