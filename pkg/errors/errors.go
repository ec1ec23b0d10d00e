package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Message categories let clients tell "fix your input" apart from
// "you are not allowed" and "try again later".
const (
	CategoryInput    = "input"
	CategoryAccess   = "access"
	CategoryState    = "state"
	CategoryRetry    = "retry"
	CategoryInternal = "internal"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Status   int    `json:"status"`
	Category string `json:"category"`
	Err      error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target carries the same error code, so clones and
// wrapped copies of a sentinel still match it.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Category: categoryFor(code, status)}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Category: categoryFor(code, status), Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation        = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrUnauthorized      = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden         = New("FORBIDDEN", http.StatusForbidden, "access denied")
	ErrNotFound          = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrInvalidTransition = New("INVALID_TRANSITION", http.StatusConflict, "invalid state transition")
	ErrDuplicate         = New("DUPLICATE", http.StatusConflict, "already exists")
	ErrCapacity          = New("CAPACITY_EXCEEDED", http.StatusConflict, "capacity exceeded")
	ErrIneligible        = New("INELIGIBLE", http.StatusForbidden, "not eligible")
	ErrLocked            = New("LOCKED", http.StatusLocked, "resource is locked")
	ErrStore             = New("STORE_ERROR", http.StatusServiceUnavailable, "storage unavailable, try again later")
	ErrInternal          = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss         = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

func categoryFor(code string, status int) string {
	switch code {
	case "VALIDATION_ERROR", "NOT_FOUND":
		return CategoryInput
	case "UNAUTHORIZED", "FORBIDDEN", "INELIGIBLE":
		return CategoryAccess
	case "INVALID_TRANSITION", "DUPLICATE", "CAPACITY_EXCEEDED", "LOCKED":
		return CategoryState
	case "STORE_ERROR":
		return CategoryRetry
	}
	if status >= http.StatusInternalServerError {
		return CategoryInternal
	}
	return CategoryInput
}

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Store wraps a collaborator failure as a retryable store error.
func Store(err error, message string) *Error {
	return Wrap(err, ErrStore.Code, ErrStore.Status, message)
}
