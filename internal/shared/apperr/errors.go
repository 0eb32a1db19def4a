package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNoAssignment    = errors.New("no active assignment")
	ErrAlreadyAssigned = errors.New("driver already holds an assignment, end it first")
	ErrCommitInFlight  = errors.New("assignment commit already in flight")
	ErrAlreadyTracking = errors.New("tracking already active")
	ErrAssignmentEnded = errors.New("assignment ended on server, select a bus again")
)

type ValidationError struct {
	Field string
	Msg   string
}

func (e ValidationError) Error() string {
	switch {
	case e.Field != "" && e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Field != "":
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

// ConflictError is returned when the server refuses a write because of
// existing state, e.g. the driver already holds an active assignment.
type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Resource != "" && e.Msg != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	}
	return "conflict"
}

func (e ConflictError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

// NetworkError covers transport failures, timeouts and unexpected statuses.
// It is always safe to retry.
type NetworkError struct {
	Op     string
	Status int
	Err    error
}

func (e NetworkError) Error() string {
	msg := "network error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e NetworkError) Unwrap() error { return e.Err }

type LocationError struct {
	Fatal bool
	Err   error
}

func (e LocationError) Error() string {
	if e.Err == nil {
		return "location unavailable"
	}
	return "location unavailable: " + e.Err.Error()
}

func (e LocationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target NetworkError
	return errors.As(err, &target)
}

func IsLocation(err error) bool {
	var target LocationError
	return errors.As(err, &target)
}
