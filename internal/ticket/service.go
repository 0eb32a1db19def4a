package ticket

import (
	"context"
	"errors"

	"backend-transitportal/internal/db"
	"backend-transitportal/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
)

const ticketColumns = `id, code, bus_id, passenger_id::text, status, issued_at, scanned_at`

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Scan marks an issued ticket used. Only the driver currently assigned to
// busID may scan, and only tickets sold for that bus are accepted.
func (s *Service) Scan(ctx context.Context, driverID string, busID int64, code string) (Ticket, error) {
	if err := s.requireAssignment(ctx, driverID, busID); err != nil {
		return Ticket{}, err
	}

	row := s.db.QueryRow(ctx, `
		UPDATE tickets
		SET status=$4, scanned_at=now(), scanned_by=$3
		WHERE code=$1 AND bus_id=$2 AND status='issued'
		RETURNING `+ticketColumns, code, busID, driverID, StatusUsed)
	t, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, s.rejection(ctx, busID, code)
	}
	return t, err
}

// Manifest lists the tickets still valid on a bus.
func (s *Service) Manifest(ctx context.Context, busID int64) ([]Ticket, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets WHERE bus_id=$1 AND status=$2
		ORDER BY issued_at
	`, busID, StatusIssued)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := []Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *Service) requireAssignment(ctx context.Context, driverID string, busID int64) error {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM bus_assignments
			WHERE driver_id=$1 AND bus_id=$2 AND ended_at IS NULL
		)
	`, driverID, busID).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrNoAssignment
	}
	return nil
}

// rejection explains why a scan matched no issued ticket for the bus.
func (s *Service) rejection(ctx context.Context, busID int64, code string) error {
	var (
		ticketBus int64
		status    string
	)
	err := s.db.QueryRow(ctx, `SELECT bus_id, status FROM tickets WHERE code=$1`, code).Scan(&ticketBus, &status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return apperr.NotFoundError{Resource: "ticket", Err: err}
	case err != nil:
		return err
	case ticketBus != busID:
		return apperr.ValidationError{Field: "code", Msg: "ticket is for another bus"}
	case status == StatusUsed:
		return apperr.ConflictError{Resource: "ticket", Msg: "already used"}
	}
	return apperr.ValidationError{Field: "code", Msg: "ticket is " + status}
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var t Ticket
	err := row.Scan(&t.ID, &t.Code, &t.BusID, &t.PassengerID, &t.Status, &t.IssuedAt, &t.ScannedAt)
	return t, err
}
