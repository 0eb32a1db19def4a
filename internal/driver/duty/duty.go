// Package duty ends a driver's duty period: ending the assignment, logging
// out, and bringing the local session in line with the server on start.
package duty

import (
	"context"
	"log/slog"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/driver/session"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/logging"
)

type AssignmentGateway interface {
	GetCurrent(ctx context.Context) (*domain.Assignment, error)
	End(ctx context.Context, assignmentID string) (domain.Assignment, error)
}

// Tracker is the part of the tracking loop duty needs.
type Tracker interface {
	Stop()
}

type Service struct {
	store   session.Store
	gateway AssignmentGateway
	tracker Tracker
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

func New(store session.Store, gw AssignmentGateway, tracker Tracker, opts ...Option) *Service {
	s := &Service{store: store, gateway: gw, tracker: tracker, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) stopTracking() {
	if s.tracker != nil {
		s.tracker.Stop()
	}
}

// EndAssignment stops tracking, ends the assignment on the server and clears
// the session. If the server cannot be reached the session is kept so the
// driver can retry.
func (s *Service) EndAssignment(ctx context.Context) error {
	s.stopTracking()

	sess, err := s.store.Get(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return apperr.ErrNoAssignment
	}

	id := sess.AssignmentID
	if id == "" {
		cur, err := s.gateway.GetCurrent(ctx)
		if err != nil {
			return err
		}
		if cur != nil {
			id = cur.ID
		}
	}
	if id != "" {
		if _, err := s.gateway.End(ctx, id); err != nil && !apperr.IsNotFound(err) {
			return err
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("assignment ended", "assignment_id", id, "bus_id", sess.BusID)
	return nil
}

// Logout stops tracking before the session is cleared. The server-side
// assignment is left open; Reconcile restores it on the next start.
func (s *Service) Logout(ctx context.Context) error {
	s.stopTracking()
	if err := s.store.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("driver logged out")
	return nil
}

// Reconcile makes the local session match the server's active assignment.
// On a gateway error the local session is left alone.
func (s *Service) Reconcile(ctx context.Context) (*session.Session, error) {
	cur, err := s.gateway.GetCurrent(ctx)
	if err != nil {
		return nil, err
	}
	local, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	if cur == nil {
		if local != nil {
			s.logger.Warn("assignment no longer active on server, clearing session", "assignment_id", local.AssignmentID)
			if err := s.store.Clear(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	if local != nil && local.AssignmentID == cur.ID {
		return local, nil
	}

	restored := session.Session{DriverType: cur.DriverType, BusID: cur.BusID, BusNumber: cur.BusNumber, AssignmentID: cur.ID}
	if err := s.store.Set(ctx, restored); err != nil {
		return nil, err
	}
	s.logger.Info("session restored from server", "assignment_id", cur.ID, "bus_id", cur.BusID)
	return &restored, nil
}
