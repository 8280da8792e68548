package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrConflict    = errors.New("conflict")
	ErrValidation  = errors.New("validation failed")
	ErrInternal    = errors.New("internal error")
	ErrUnavailable = errors.New("service unavailable")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// NewError returns a sentinel carrying msg that matches kind under errors.Is,
// so RespondError can map package-level errors without knowing them.
func NewError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// StatusOf reports the HTTP status for err.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to { "error": message } responses.
// Server-side failures only expose the outermost domain message.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status < http.StatusInternalServerError {
		Error(w, status, err.Error())
		return
	}
	msg := "internal error"
	var ke *kindError
	if errors.As(err, &ke) {
		msg = ke.msg
	}
	Error(w, status, msg)
}
