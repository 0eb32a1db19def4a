package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/events"
	"backend-transitportal/internal/shared/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
)

var assignmentCols = []string{"id", "driver_id", "bus_id", "number", "driver_type", "assigned_at", "ended_at"}

type recordingEvents struct {
	kinds []string
	err   error
}

func (r *recordingEvents) Publish(_ context.Context, kind string, _ domain.Assignment) error {
	r.kinds = append(r.kinds, kind)
	return r.err
}

type countingMetrics struct{ created, ended, conflicts int }

func (m *countingMetrics) AssignmentCreated()  { m.created++ }
func (m *countingMetrics) AssignmentEnded()    { m.ended++ }
func (m *countingMetrics) AssignmentConflict() { m.conflicts++ }

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestAssignCreatesAndPublishes(t *testing.T) {
	mock := newMock(t)
	ev := &recordingEvents{}
	m := &countingMetrics{}

	mock.ExpectQuery(`SELECT number, service_type FROM buses WHERE id=\$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"number", "service_type"}).AddRow("EX-2002", "expressway"))
	mock.ExpectQuery(`INSERT INTO bus_assignments`).
		WithArgs(pgxmock.AnyArg(), "driver-1", int64(2), "expressway").
		WillReturnRows(pgxmock.NewRows([]string{"assigned_at"}).AddRow(time.Now()))

	svc := NewService(mock, WithEvents(ev), WithMetrics(m))
	a, err := svc.Assign(context.Background(), "driver-1", 2, domain.ServiceExpressway)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if a.ID == "" || a.BusNumber != "EX-2002" || !a.Active() {
		t.Fatalf("unexpected assignment %+v", a)
	}
	if len(ev.kinds) != 1 || ev.kinds[0] != events.KindAssigned || m.created != 1 {
		t.Fatalf("expected created event and metric")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAssignPublishFailureDoesNotFailAssign(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT number, service_type FROM buses`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"number", "service_type"}).AddRow("EX-2002", "expressway"))
	mock.ExpectQuery(`INSERT INTO bus_assignments`).
		WithArgs(pgxmock.AnyArg(), "driver-1", int64(2), "expressway").
		WillReturnRows(pgxmock.NewRows([]string{"assigned_at"}).AddRow(time.Now()))

	svc := NewService(mock, WithEvents(&recordingEvents{err: errDB}))
	if _, err := svc.Assign(context.Background(), "driver-1", 2, domain.ServiceExpressway); err != nil {
		t.Fatalf("assign should succeed without broker: %v", err)
	}
}

func TestAssignValidation(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.Assign(context.Background(), "", 1, domain.ServiceNormal); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for missing driver")
	}
	if _, err := svc.Assign(context.Background(), "driver-1", 1, "luxury"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for bad type")
	}
}

func TestAssignBusMissing(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT number, service_type FROM buses`).
		WithArgs(int64(9)).
		WillReturnError(pgx.ErrNoRows)

	_, err := NewService(mock).Assign(context.Background(), "driver-1", 9, domain.ServiceNormal)
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAssignTypeMismatch(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`SELECT number, service_type FROM buses`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"number", "service_type"}).AddRow("NB-1001", "normal"))

	_, err := NewService(mock).Assign(context.Background(), "driver-1", 1, domain.ServiceExpressway)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAssignConflicts(t *testing.T) {
	cases := []struct {
		constraint string
		msg        string
	}{
		{driverActiveIdx, "assignment conflict: driver already holds an active assignment"},
		{busActiveIdx, "assignment conflict: bus is already assigned to another driver"},
	}
	for _, tc := range cases {
		mock := newMock(t)
		m := &countingMetrics{}
		mock.ExpectQuery(`SELECT number, service_type FROM buses`).
			WithArgs(int64(1)).
			WillReturnRows(pgxmock.NewRows([]string{"number", "service_type"}).AddRow("NB-1001", "normal"))
		mock.ExpectQuery(`INSERT INTO bus_assignments`).
			WithArgs(pgxmock.AnyArg(), "driver-1", int64(1), "normal").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})

		_, err := NewService(mock, WithMetrics(m)).Assign(context.Background(), "driver-1", 1, domain.ServiceNormal)
		if !apperr.IsConflict(err) || err.Error() != tc.msg {
			t.Fatalf("expected conflict %q, got %v", tc.msg, err)
		}
		if m.conflicts != 1 || m.created != 0 {
			t.Fatalf("unexpected metrics %+v", m)
		}
	}
}

func TestCurrent(t *testing.T) {
	mock := newMock(t)
	mock.ExpectQuery(`FROM bus_assignments a\s+JOIN buses b`).
		WithArgs("driver-1").
		WillReturnRows(pgxmock.NewRows(assignmentCols).
			AddRow("a-1", "driver-1", int64(2), "EX-2002", "expressway", time.Now(), (*time.Time)(nil)))
	mock.ExpectQuery(`FROM bus_assignments a\s+JOIN buses b`).
		WithArgs("driver-2").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService(mock)
	a, err := svc.Current(context.Background(), "driver-1")
	if err != nil || a == nil || a.BusNumber != "EX-2002" || a.DriverType != domain.ServiceExpressway {
		t.Fatalf("unexpected current %+v %v", a, err)
	}

	a, err = svc.Current(context.Background(), "driver-2")
	if err != nil || a != nil {
		t.Fatalf("expected no current assignment, got %+v %v", a, err)
	}
}

func TestEnd(t *testing.T) {
	mock := newMock(t)
	ev := &recordingEvents{}
	endedAt := time.Now()

	mock.ExpectQuery(`UPDATE bus_assignments\s+SET ended_at = now\(\)`).
		WithArgs("a-1", "driver-1").
		WillReturnRows(pgxmock.NewRows(assignmentCols).
			AddRow("a-1", "driver-1", int64(2), "EX-2002", "expressway", time.Now().Add(-time.Hour), &endedAt))
	mock.ExpectQuery(`UPDATE bus_assignments`).
		WithArgs("a-1", "driver-1").
		WillReturnError(pgx.ErrNoRows)

	svc := NewService(mock, WithEvents(ev))
	a, err := svc.End(context.Background(), "driver-1", "a-1")
	if err != nil || a.Active() {
		t.Fatalf("expected ended assignment, got %+v %v", a, err)
	}
	if len(ev.kinds) != 1 || ev.kinds[0] != events.KindEnded {
		t.Fatalf("expected ended event")
	}

	if _, err := svc.End(context.Background(), "driver-1", "a-1"); !apperr.IsNotFound(err) {
		t.Fatalf("second end should be not found, got %v", err)
	}
}

func TestEndClosesActiveTrip(t *testing.T) {
	mock := newMock(t)
	endedAt := time.Now()

	mock.ExpectQuery(`(?s)UPDATE bus_assignments.*UPDATE trips\s+SET status = 'completed', ended_at = now\(\)\s+WHERE assignment_id IN \(SELECT id FROM ended\) AND status = 'active'`).
		WithArgs("a-1", "driver-1").
		WillReturnRows(pgxmock.NewRows(assignmentCols).
			AddRow("a-1", "driver-1", int64(2), "EX-2002", "expressway", time.Now().Add(-time.Hour), &endedAt))

	if _, err := NewService(mock).End(context.Background(), "driver-1", "a-1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

var errDB = errors.New("db error")
