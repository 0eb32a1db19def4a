package apperr

import (
	"errors"
	"net/http"
)

// Status maps an error to the HTTP status the API answers with.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case IsValidation(err):
		return http.StatusBadRequest
	case IsNotFound(err):
		return http.StatusNotFound
	case IsConflict(err), errors.Is(err, ErrAlreadyAssigned):
		return http.StatusConflict
	case errors.Is(err, ErrNoAssignment):
		return http.StatusPreconditionFailed
	}
	return http.StatusInternalServerError
}

// FromStatus is the inverse used by HTTP clients: it turns a non-2xx status
// and server message into a typed error.
func FromStatus(op string, status int, msg string) error {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ValidationError{Msg: msg}
	case http.StatusNotFound:
		return NotFoundError{Resource: msg}
	case http.StatusConflict:
		return ConflictError{Msg: msg}
	case http.StatusPreconditionFailed:
		return ErrNoAssignment
	}
	return NetworkError{Op: op, Status: status, Err: errors.New(msg)}
}
