package bus

import (
	"context"
	"errors"

	"backend-transitportal/internal/db"
	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

const busColumns = `id, number, service_type, capacity, route_id, route_summary`

// List returns the bus catalog, optionally restricted to one service type.
func (s *Service) List(ctx context.Context, serviceType *domain.ServiceType) ([]domain.Bus, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if serviceType != nil {
		rows, err = s.db.Query(ctx, `
			SELECT `+busColumns+`
			FROM buses WHERE service_type=$1
			ORDER BY number
		`, string(*serviceType))
	} else {
		rows, err = s.db.Query(ctx, `
			SELECT `+busColumns+`
			FROM buses
			ORDER BY number
		`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buses := []domain.Bus{}
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, err
		}
		buses = append(buses, b)
	}
	return buses, rows.Err()
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Bus, error) {
	row := s.db.QueryRow(ctx, `SELECT `+busColumns+` FROM buses WHERE id=$1`, id)
	b, err := scanBus(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Bus{}, apperr.NotFoundError{Resource: "bus", Err: err}
	}
	return b, err
}

func scanBus(row pgx.Row) (domain.Bus, error) {
	var (
		b           domain.Bus
		serviceType string
	)
	if err := row.Scan(&b.ID, &b.Number, &serviceType, &b.Capacity, &b.RouteID, &b.RouteSummary); err != nil {
		return domain.Bus{}, err
	}
	b.ServiceType = domain.ServiceType(serviceType)
	return b, nil
}
