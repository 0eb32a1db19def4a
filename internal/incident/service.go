package incident

import (
	"context"
	"errors"

	"backend-transitportal/internal/db"
	"backend-transitportal/internal/shared/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Create files a report against the bus the driver is assigned to right now.
// Reports for any other bus are refused.
func (s *Service) Create(ctx context.Context, driverID string, input Incident) (Incident, error) {
	err := s.db.QueryRow(ctx, `
		SELECT id FROM bus_assignments
		WHERE driver_id=$1 AND bus_id=$2 AND ended_at IS NULL
	`, driverID, input.BusID).Scan(&input.AssignmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Incident{}, apperr.ErrNoAssignment
	}
	if err != nil {
		return Incident{}, err
	}

	input.ID = uuid.NewString()
	input.DriverID = driverID
	row := s.db.QueryRow(ctx, `
		INSERT INTO incidents (id, driver_id, bus_id, assignment_id, category, description, lat, lng)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, input.ID, input.DriverID, input.BusID, input.AssignmentID, input.Category, input.Description, input.Lat, input.Lng)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Incident{}, err
	}
	return input, nil
}

func (s *Service) ListByBus(ctx context.Context, busID int64) ([]Incident, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, driver_id, bus_id, COALESCE(assignment_id::text, ''), category, description, lat, lng, created_at
		FROM incidents WHERE bus_id=$1
		ORDER BY created_at DESC
	`, busID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	incidents := []Incident{}
	for rows.Next() {
		var i Incident
		if err := rows.Scan(&i.ID, &i.DriverID, &i.BusID, &i.AssignmentID, &i.Category, &i.Description, &i.Lat, &i.Lng, &i.CreatedAt); err != nil {
			return nil, err
		}
		incidents = append(incidents, i)
	}
	return incidents, rows.Err()
}
