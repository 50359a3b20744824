package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Error is an HTTP-facing failure. Only Message is written to the wire, as
// {"message": "..."}; Status selects the response code.
type Error struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Wrap attaches the underlying cause, which is logged but never sent.
func Wrap(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Cause: cause}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, message)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, message)
}

func Internal(message string) *Error {
	return New(http.StatusInternalServerError, message)
}

func NotImplemented(message string) *Error {
	return New(http.StatusNotImplemented, message)
}

// Write sends err as a JSON error body. Errors that are not *Error become a
// generic 500.
func Write(w http.ResponseWriter, err error) {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		apiErr = Internal("Internal server error")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Status)
	_ = json.NewEncoder(w).Encode(apiErr)
}
