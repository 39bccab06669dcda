// Package apierror defines the error shape rendered by the automation API.
package apierror

import (
	"errors"
	"net/http"
)

// Error is an API error carrying its HTTP status. It renders as
// {"error": "<message>"}.
type Error struct {
	HTTPCode int    `json:"-"`
	Message  string `json:"error"`
}

// New returns an Error with the given status and message.
func New(code int, message string) *Error {
	return &Error{HTTPCode: code, Message: message}
}

func BadRequest(message string) *Error { return New(http.StatusBadRequest, message) }

func NotFound(message string) *Error { return New(http.StatusNotFound, message) }

// Error implements error interface.
func (e *Error) Error() string {
	return e.Message
}

// Common errors. Authentication failures share one message whatever the
// cause.
var (
	ErrUnauthorized     = New(http.StatusUnauthorized, "unauthorized")
	ErrNotFound         = New(http.StatusNotFound, "not found")
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "method not allowed")
	ErrInternal         = New(http.StatusInternalServerError, "internal server error")
)

// StatusCode returns the HTTP status code of err, 500 for untyped errors.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.HTTPCode
	}
	return http.StatusInternalServerError
}

// Public returns the error that may be shown to a client: typed errors as
// they are, anything else as ErrInternal.
func Public(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal
}
