package api

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of a codesmith error.
type ErrorKind string

const (
	// ErrorKindConfiguration covers unknown backends and missing credentials.
	ErrorKindConfiguration   ErrorKind = "configuration_error"
	ErrorKindBackend         ErrorKind = "backend_error"
	ErrorKindEmptyResult     ErrorKind = "empty_result"
	ErrorKindStorage         ErrorKind = "storage_error"
	ErrorKindInvalidRequest  ErrorKind = "invalid_request"
	ErrorKindNotFound        ErrorKind = "not_found"
	ErrorKindServer          ErrorKind = "server_error"
	ErrorKindTooManyRequests ErrorKind = "too_many_requests"
)

// Error is a structured error carrying a kind, the backend involved (if
// any), a human-readable message, and an optional wrapped cause.
type Error struct {
	Kind    ErrorKind `json:"type"`
	Backend string    `json:"backend,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`

	// MissingCredential marks configuration errors caused by an absent API key.
	MissingCredential bool `json:"-"`

	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	switch {
	case e.Backend != "":
		return fmt.Sprintf("%s [%s]: %s", e.Kind, e.Backend, msg)
	case e.Param != "":
		return fmt.Sprintf("%s: %s (param: %s)", e.Kind, msg, e.Param)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// ErrorResponse wraps an Error for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *Error `json:"error"`
}

// NewConfigurationError reports a configuration problem, such as an
// unknown backend name.
func NewConfigurationError(backend, message string) *Error {
	return &Error{Kind: ErrorKindConfiguration, Backend: backend, Message: message}
}

// NewMissingCredentialError reports that no API key is available for backend.
func NewMissingCredentialError(backend string) *Error {
	return &Error{
		Kind:              ErrorKindConfiguration,
		Backend:           backend,
		Message:           "missing credential",
		MissingCredential: true,
	}
}

// NewBackendError wraps a transport, auth, or API failure from backend.
func NewBackendError(backend string, err error) *Error {
	return &Error{Kind: ErrorKindBackend, Backend: backend, Err: err}
}

// NewEmptyResultError reports that backend answered with no usable text.
func NewEmptyResultError(backend string) *Error {
	return &Error{Kind: ErrorKindEmptyResult, Backend: backend, Message: "backend returned no content"}
}

// NewStorageError wraps a failure to persist or read an artifact.
func NewStorageError(message string, err error) *Error {
	return &Error{Kind: ErrorKindStorage, Message: message, Err: err}
}

// NewInvalidRequestError creates an Error for invalid request parameters.
func NewInvalidRequestError(param, message string) *Error {
	return &Error{Kind: ErrorKindInvalidRequest, Param: param, Message: message}
}

// NewNotFoundError creates an Error for resources that cannot be found.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrorKindNotFound, Message: message}
}

// NewServerError creates an Error for internal server errors.
func NewServerError(message string) *Error {
	return &Error{Kind: ErrorKindServer, Message: message}
}

// NewTooManyRequestsError creates an Error for rate limiting.
func NewTooManyRequestsError(message string) *Error {
	return &Error{Kind: ErrorKindTooManyRequests, Message: message}
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or
// ErrorKindServer if there is none.
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ErrorKindServer
}
