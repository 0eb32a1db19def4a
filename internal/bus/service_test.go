package bus

import (
	"context"
	"errors"
	"testing"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

var busRowCols = []string{"id", "number", "service_type", "capacity", "route_id", "route_summary"}

func TestListAllAndFiltered(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	routeID := int64(9)
	mock.ExpectQuery(`SELECT id, number, service_type, capacity, route_id, route_summary\s+FROM buses\s+ORDER BY number`).
		WillReturnRows(pgxmock.NewRows(busRowCols).
			AddRow(int64(1), "NB-1001", "normal", 54, (*int64)(nil), "").
			AddRow(int64(2), "EX-2002", "expressway", 48, &routeID, "Colombo - Galle"))

	svc := NewService(mock)
	buses, err := svc.List(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(buses) != 2 || buses[1].ServiceType != domain.ServiceExpressway || *buses[1].RouteID != 9 {
		t.Fatalf("unexpected buses %+v", buses)
	}

	express := domain.ServiceExpressway
	mock.ExpectQuery(`FROM buses WHERE service_type=\$1`).
		WithArgs("expressway").
		WillReturnRows(pgxmock.NewRows(busRowCols).AddRow(int64(2), "EX-2002", "expressway", 48, &routeID, "Colombo - Galle"))

	buses, err = svc.List(context.Background(), &express)
	if err != nil || len(buses) != 1 {
		t.Fatalf("filtered list: %v %v", buses, err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM buses`).WillReturnError(errBus)

	if _, err := NewService(mock).List(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`FROM buses WHERE id=\$1`).WithArgs(int64(77)).WillReturnError(pgx.ErrNoRows)

	_, err = NewService(mock).Get(context.Background(), 77)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

var errBus = errors.New("bus error")
