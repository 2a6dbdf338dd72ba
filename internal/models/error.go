package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds. Every operational failure wraps exactly one of these.
var (
	ErrValidation     = errors.New("validation failed")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrInternalServer = errors.New("internal server error")
)

// Error is an operational error whose message is safe to show to clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

// StatusCode maps the error kind to an HTTP status.
func (e *Error) StatusCode() int {
	switch {
	case errors.Is(e.Kind, ErrValidation), errors.Is(e.Kind, ErrDuplicateKey):
		return http.StatusBadRequest
	case errors.Is(e.Kind, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(e.Kind, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(e.Kind, ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the client-facing message.
func (e *Error) PublicMessage() string {
	if e.StatusCode() == http.StatusInternalServerError {
		return "Something went wrong"
	}
	return e.Message
}

// NewError builds an operational error of the given kind.
func NewError(kind error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewValidationError(msg string) *Error   { return &Error{Kind: ErrValidation, Message: msg} }
func NewUnauthorizedError(msg string) *Error { return &Error{Kind: ErrUnauthorized, Message: msg} }
func NewForbiddenError(msg string) *Error    { return &Error{Kind: ErrForbidden, Message: msg} }
func NewNotFoundError(msg string) *Error     { return &Error{Kind: ErrNotFound, Message: msg} }
func NewDuplicateKeyError(msg string) *Error { return &Error{Kind: ErrDuplicateKey, Message: msg} }
