package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure so the store can choose between
// surfacing it and switching to offline mode.
type Kind string

const (
	KindNotFound    Kind = "not_found"
	KindValidation  Kind = "validation"
	KindUnavailable Kind = "unavailable"
	KindConflict    Kind = "conflict"
)

// Sentinels for errors.Is against *Error.
var (
	ErrNotFound    = errors.New("event not found")
	ErrValidation  = errors.New("event rejected by backend")
	ErrUnavailable = errors.New("events backend unreachable")
	ErrConflict    = errors.New("events backend error")
)

// Error is returned by every Client call that fails.
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 for transport errors
	Message string // short, human-readable
	Err     error  // underlying transport/decode error, if any
}

func (e *Error) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("%s (%d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrConflict:
		return e.Kind == KindConflict
	}
	return false
}

// IsUnavailable reports whether err means the backend could not be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// kindForStatus maps a non-2xx HTTP status to a Kind.
func kindForStatus(status int) Kind {
	switch status {
	case http.StatusNotFound, http.StatusGone:
		return KindNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return KindUnavailable
	default:
		return KindConflict
	}
}

func transportError(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "backend unreachable", Err: err}
}
