// Package apperr defines the closed set of error kinds shared by the
// reconciliation engine, its store adapters, and the transport layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rotisserie/eris"
)

// Kind classifies an error. The set is closed; adapters translate provider
// failures into one of these before they reach the engine.
type Kind int

const (
	// Internal is the zero value so unclassified errors fall through to it.
	Internal Kind = iota
	InvalidArgument
	NotFound
	FailedPrecondition
	PermissionDenied
	Unauthenticated
	Conflict
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "INVALID_ARGUMENT"
	case NotFound:
		return "NOT_FOUND"
	case FailedPrecondition:
		return "FAILED_PRECONDITION"
	case PermissionDenied:
		return "PERMISSION_DENIED"
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case Conflict:
		return "CONFLICT"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps a kind to the status code used by the HTTP surface.
func (k Kind) HTTPStatus() int {
	switch k {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case FailedPrecondition:
		return http.StatusPreconditionFailed
	case PermissionDenied:
		return http.StatusForbidden
	case Unauthenticated:
		return http.StatusUnauthorized
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error. Cause keeps the eris-wrapped origin so the
// stack context survives.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Cause.Error()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New returns a classified error without a cause.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Cause: eris.Wrap(err, msg)}
}

// Key names the unique account key that collided.
type Key string

const (
	KeyEmail Key = "email"
	KeyPhone Key = "phone"
	KeyID    Key = "uid"
)

// Code returns the provider-neutral code reported in outcome details.
func (k Key) Code() string {
	switch k {
	case KeyPhone:
		return "phone-number-already-exists"
	case KeyID:
		return "uid-already-exists"
	default:
		return "email-already-exists"
	}
}

// ConflictError reports a unique-key collision in the identity store.
type ConflictError struct {
	Key   Key
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s %q is already in use by another account", e.Key.Code(), e.Key, e.Value)
}

// NewConflict returns a ConflictError for key and value.
func NewConflict(key Key, value string) error {
	return &ConflictError{Key: key, Value: value}
}

// KindOf walks the chain of err and returns the first classification found.
// Deadline and cancellation errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return Internal
	}
	var ce *ConflictError
	if errors.As(err, &ce) {
		return Conflict
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ConflictKey returns the collided key when err is a conflict.
func ConflictKey(err error) (Key, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Key, true
	}
	return "", false
}

// IsTimeout reports whether err stems from a context deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

// Message returns the user-facing message of a classified error, or the
// plain error text otherwise.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}
