// Package session holds the driver's current bus assignment: the one piece
// of state every other driver feature reads to scope its requests.
//
// A store has a single writer (the selection flow on commit, and the duty
// actions that end or reconcile an assignment) and many readers. Readers
// must call Get or Has on every use instead of caching the result, because
// the session can be cleared underneath them.
package session

import (
	"context"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/shared/apperr"
)

type Session struct {
	DriverType   domain.ServiceType `json:"driver_type"`
	BusID        int64              `json:"bus_id"`
	BusNumber    string             `json:"bus_number"`
	AssignmentID string             `json:"assignment_id,omitempty"`
}

func (s Session) Validate() error {
	if s.BusID <= 0 {
		return apperr.ValidationError{Field: "bus_id", Msg: "required"}
	}
	if !s.DriverType.Valid() {
		return apperr.ValidationError{Field: "driver_type", Msg: "must be expressway or normal"}
	}
	return nil
}

// Store persists at most one Session. Get returns nil, nil when no session
// exists. Set replaces the whole session. Clear is idempotent. Has reports
// false when the store cannot be read.
type Store interface {
	Get(ctx context.Context) (*Session, error)
	Set(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
	Has(ctx context.Context) bool
}
