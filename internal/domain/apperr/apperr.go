// Package apperr defines the error taxonomy shared by the core and the HTTP layer.
// Every failure that reaches a client is an *Error carrying one Code.
package apperr

import (
	"errors"
	"net/http"
)

// Code classifies a user-visible failure.
type Code string

const (
	InvalidRequest   Code = "InvalidRequest"
	Unauthenticated  Code = "Unauthenticated"
	IndexUnavailable Code = "IndexUnavailable"
	GenerationError  Code = "GenerationError"
	PersistenceError Code = "PersistenceError"
	PermissionDenied Code = "PermissionDenied"
	InvalidTurn      Code = "InvalidTurn"
	Internal         Code = "Internal"
)

// Error is a classified failure. Message is safe to show to clients;
// Err keeps the underlying cause for logs and errors.Is.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New builds an *Error.
func New(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code) + ": " + e.Message
	}
	return string(e.Code) + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the Code of the first *Error in err's chain, or Internal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return Internal
}

// HTTPStatus maps a Code to the response status.
func HTTPStatus(code Code) int {
	switch code {
	case InvalidRequest:
		return http.StatusBadRequest
	case Unauthenticated:
		return http.StatusUnauthorized
	case PermissionDenied:
		return http.StatusForbidden
	case IndexUnavailable, PersistenceError:
		return http.StatusServiceUnavailable
	case GenerationError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
