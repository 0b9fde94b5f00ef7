package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/codesmith/pkg/api"
	"github.com/rhuss/codesmith/pkg/history"
)

// HTTPStatusFromError maps an error kind to the corresponding HTTP status
// code. Transport-level errors (body too large, unsupported content type)
// are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.Error) int {
	switch err.Kind {
	case api.ErrorKindConfiguration:
		if err.MissingCredential {
			return http.StatusServiceUnavailable
		}
		return http.StatusBadRequest
	case api.ErrorKindInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorKindNotFound:
		return http.StatusNotFound
	case api.ErrorKindTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorKindBackend, api.ErrorKindEmptyResult:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse writes a JSON error envelope with the given status.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.Error, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an error response, deriving the status from its kind.
func WriteAPIError(w http.ResponseWriter, apiErr *api.Error) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError renders any handler error. History sentinels map to their
// API kinds; other untyped errors become server errors.
func WriteError(w http.ResponseWriter, err error) {
	WriteAPIError(w, ToAPIError(err))
}

// ToAPIError converts err to the *api.Error rendered for it.
func ToAPIError(err error) *api.Error {
	if apiErr, ok := api.AsError(err); ok {
		return apiErr
	}
	switch {
	case errors.Is(err, history.ErrNotFound):
		return api.NewNotFoundError("verification not found")
	case errors.Is(err, history.ErrConflict):
		return api.NewInvalidRequestError("id", "verification already exists")
	default:
		return api.NewServerError(err.Error())
	}
}
