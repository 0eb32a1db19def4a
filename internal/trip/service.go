package trip

import (
	"context"
	"errors"

	"backend-transitportal/internal/db"
	"backend-transitportal/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const activeTripIdx = "trips_assignment_active_idx"

const tripColumns = `id, assignment_id, bus_id, driver_id, status, started_at, ended_at, total_distance_m`

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Start opens a trip on the bus the driver is currently assigned to. A
// non-zero busID must match that assignment.
func (s *Service) Start(ctx context.Context, driverID string, busID int64) (Trip, error) {
	var (
		assignmentID string
		assignedBus  int64
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, bus_id FROM bus_assignments
		WHERE driver_id=$1 AND ended_at IS NULL
	`, driverID).Scan(&assignmentID, &assignedBus)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trip{}, apperr.ErrNoAssignment
	}
	if err != nil {
		return Trip{}, err
	}
	if busID != 0 && busID != assignedBus {
		return Trip{}, apperr.ValidationError{Field: "bus_id", Msg: "not the assigned bus"}
	}

	trip := Trip{
		ID:           uuid.NewString(),
		AssignmentID: assignmentID,
		BusID:        assignedBus,
		DriverID:     driverID,
		Status:       StatusActive,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO trips (id, assignment_id, bus_id, driver_id, status)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING started_at
	`, trip.ID, trip.AssignmentID, trip.BusID, trip.DriverID, trip.Status)
	if err := row.Scan(&trip.StartedAt); err != nil {
		if constraint, ok := db.UniqueViolation(err); ok && constraint == activeTripIdx {
			return Trip{}, apperr.ConflictError{Resource: "trip", Msg: "a trip is already running for this assignment", Err: err}
		}
		return Trip{}, err
	}
	return trip, nil
}

func (s *Service) End(ctx context.Context, driverID, tripID string) (Trip, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE trips
		SET status=$3, ended_at=now()
		WHERE id=$1 AND driver_id=$2 AND status='active'
		RETURNING `+tripColumns, tripID, driverID, StatusCompleted)
	trip, err := scanTrip(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Trip{}, apperr.NotFoundError{Resource: "active trip", Err: err}
	}
	return trip, err
}

func (s *Service) Get(ctx context.Context, id string) (Trip, error) {
	trip, err := scanTrip(s.db.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Trip{}, apperr.NotFoundError{Resource: "trip", Err: err}
	}
	return trip, err
}

// ListByBus returns the bus's most recent trips, newest first.
func (s *Service) ListByBus(ctx context.Context, busID int64, limit int) ([]Trip, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips WHERE bus_id=$1
		ORDER BY started_at DESC
		LIMIT $2
	`, busID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := []Trip{}
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

func scanTrip(row pgx.Row) (Trip, error) {
	var t Trip
	err := row.Scan(&t.ID, &t.AssignmentID, &t.BusID, &t.DriverID, &t.Status, &t.StartedAt, &t.EndedAt, &t.TotalDistanceM)
	return t, err
}
