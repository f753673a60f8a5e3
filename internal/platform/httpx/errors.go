// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the domain layer.
var (
	// ErrNotFound indicates the referenced order or quote does not exist.
	ErrNotFound = errors.New("resource not found")
	// ErrValidation indicates invalid input or an invalid state transition,
	// detected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrExpired indicates an action attempted on an already-expired quote.
	// A validation variant that must be re-checked server side even when the
	// caller's view is stale.
	ErrExpired = errors.New("quote expired")
	// ErrConflict indicates the server rejected an optimistic update because
	// the record changed since the snapshot was taken.
	ErrConflict = errors.New("state conflict")
	// ErrTransport indicates a network or upstream failure. Retry policy
	// belongs to the transport layer.
	ErrTransport = errors.New("transport failure")
	// ErrForbidden indicates missing permission.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a missing or invalid identity.
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrExpired):
		Problem(w, http.StatusUnprocessableEntity, "Expired", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrTransport):
		Problem(w, http.StatusBadGateway, "Upstream Failure", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
