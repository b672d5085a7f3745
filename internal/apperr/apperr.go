// Package apperr defines the error kinds shared by the board bridge.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound means the referenced post or answer log does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition means a ledger status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUpstreamUnavailable means the board API or the language model failed transiently.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrAuthExpired means the shop credential must be re-authorized.
	ErrAuthExpired = errors.New("authorization expired")
	// ErrValidation means the caller supplied bad input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicateDelivery means the work was already done; callers treat it as success.
	ErrDuplicateDelivery = errors.New("already processed")
)

// HTTPStatus maps an error to the status code the API routes return.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, ErrDuplicateDelivery):
		return http.StatusOK
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the operation may succeed if repeated unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
