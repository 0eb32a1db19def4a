package assignment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"backend-transitportal/internal/db"
	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/events"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/logging"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	driverActiveIdx = "bus_assignments_driver_active_idx"
	busActiveIdx    = "bus_assignments_bus_active_idx"
)

type EventPublisher interface {
	Publish(ctx context.Context, kind string, a domain.Assignment) error
}

type Metrics interface {
	AssignmentCreated()
	AssignmentEnded()
	AssignmentConflict()
}

type Service struct {
	db      db.Querier
	events  EventPublisher
	metrics Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithEvents(p EventPublisher) Option { return func(s *Service) { s.events = p } }
func WithMetrics(m Metrics) Option       { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option   { return func(s *Service) { s.logger = l } }

func NewService(db db.Querier, opts ...Option) *Service {
	s := &Service{db: db, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assign binds a driver to a bus. The partial unique indexes on
// bus_assignments keep at most one open assignment per driver and per bus.
func (s *Service) Assign(ctx context.Context, driverID string, busID int64, driverType domain.ServiceType) (domain.Assignment, error) {
	if driverID == "" {
		return domain.Assignment{}, apperr.ValidationError{Field: "driver_id", Msg: "required"}
	}
	if !driverType.Valid() {
		return domain.Assignment{}, apperr.ValidationError{Field: "driver_type", Msg: "must be expressway or normal"}
	}

	var (
		busNumber   string
		serviceType string
	)
	err := s.db.QueryRow(ctx, `SELECT number, service_type FROM buses WHERE id=$1`, busID).Scan(&busNumber, &serviceType)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, apperr.NotFoundError{Resource: "bus", Err: err}
	}
	if err != nil {
		return domain.Assignment{}, err
	}
	if domain.ServiceType(serviceType) != driverType {
		return domain.Assignment{}, apperr.ValidationError{Field: "bus_id", Msg: "bus service type does not match driver type"}
	}

	a := domain.Assignment{
		ID:         uuid.NewString(),
		DriverID:   driverID,
		BusID:      busID,
		BusNumber:  busNumber,
		DriverType: driverType,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO bus_assignments (id, driver_id, bus_id, driver_type)
		VALUES ($1,$2,$3,$4)
		RETURNING assigned_at
	`, a.ID, a.DriverID, a.BusID, string(a.DriverType))
	if err := row.Scan(&a.AssignedAt); err != nil {
		if constraint, ok := db.UniqueViolation(err); ok {
			if s.metrics != nil {
				s.metrics.AssignmentConflict()
			}
			msg := "driver already holds an active assignment"
			if constraint == busActiveIdx {
				msg = "bus is already assigned to another driver"
			}
			return domain.Assignment{}, apperr.ConflictError{Resource: "assignment", Msg: msg, Err: err}
		}
		return domain.Assignment{}, err
	}

	if s.metrics != nil {
		s.metrics.AssignmentCreated()
	}
	s.publish(ctx, events.KindAssigned, a)
	s.logger.Info("bus assigned", "assignment_id", a.ID, "driver_id", driverID, "bus_id", busID)
	return a, nil
}

// Current returns the driver's open assignment, or nil when there is none.
func (s *Service) Current(ctx context.Context, driverID string) (*domain.Assignment, error) {
	row := s.db.QueryRow(ctx, `
		SELECT a.id, a.driver_id, a.bus_id, b.number, a.driver_type, a.assigned_at, a.ended_at
		FROM bus_assignments a
		JOIN buses b ON b.id = a.bus_id
		WHERE a.driver_id=$1 AND a.ended_at IS NULL
	`, driverID)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// End closes an open assignment owned by driverID together with its active
// trip, so no further positions are accepted for it.
func (s *Service) End(ctx context.Context, driverID, assignmentID string) (domain.Assignment, error) {
	row := s.db.QueryRow(ctx, `
		WITH ended AS (
			UPDATE bus_assignments
			SET ended_at = now()
			WHERE id=$1 AND driver_id=$2 AND ended_at IS NULL
			RETURNING id, driver_id, bus_id, driver_type, assigned_at, ended_at
		), closed AS (
			UPDATE trips
			SET status = 'completed', ended_at = now()
			WHERE assignment_id IN (SELECT id FROM ended) AND status = 'active'
		)
		SELECT e.id, e.driver_id, e.bus_id, b.number, e.driver_type, e.assigned_at, e.ended_at
		FROM ended e
		JOIN buses b ON b.id = e.bus_id
	`, assignmentID, driverID)
	a, err := scanAssignment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Assignment{}, apperr.NotFoundError{Resource: "active assignment", Err: err}
	}
	if err != nil {
		return domain.Assignment{}, err
	}

	if s.metrics != nil {
		s.metrics.AssignmentEnded()
	}
	s.publish(ctx, events.KindEnded, a)
	s.logger.Info("assignment ended", "assignment_id", a.ID, "driver_id", driverID)
	return a, nil
}

func (s *Service) publish(ctx context.Context, kind string, a domain.Assignment) {
	if s.events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.events.Publish(pubCtx, kind, a); err != nil {
		s.logger.Warn("assignment event not delivered", "kind", kind, "assignment_id", a.ID, "error", err)
	}
}

func scanAssignment(row pgx.Row) (domain.Assignment, error) {
	var (
		a          domain.Assignment
		driverType string
	)
	if err := row.Scan(&a.ID, &a.DriverID, &a.BusID, &a.BusNumber, &driverType, &a.AssignedAt, &a.EndedAt); err != nil {
		return domain.Assignment{}, err
	}
	a.DriverType = domain.ServiceType(driverType)
	return a, nil
}
