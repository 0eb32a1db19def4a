package selection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/driver/session"
	"backend-transitportal/internal/shared/apperr"
)

var fleet = []domain.Bus{
	{ID: 1, Number: "N-101", ServiceType: domain.ServiceNormal},
	{ID: 2, Number: "EX-2002", ServiceType: domain.ServiceExpressway},
	{ID: 3, Number: "EX-3003", ServiceType: domain.ServiceExpressway},
	{ID: 4, Number: "N-104", ServiceType: domain.ServiceNormal},
}

type fakeDirectory struct {
	buses []domain.Bus
	err   error
	calls atomic.Int32
}

func (d *fakeDirectory) ListBuses(_ context.Context, _ *domain.ServiceType) ([]domain.Bus, error) {
	d.calls.Add(1)
	if d.err != nil {
		return nil, d.err
	}
	return d.buses, nil
}

type fakeGateway struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
	resp    domain.Assignment
	err     error
}

func (g *fakeGateway) Assign(_ context.Context, driverID string, busID int64, t domain.ServiceType) (domain.Assignment, error) {
	g.calls.Add(1)
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.release != nil {
		<-g.release
	}
	if g.err != nil {
		return domain.Assignment{}, g.err
	}
	a := g.resp
	if a.ID == "" {
		a = domain.Assignment{ID: "a-1", DriverID: driverID, BusID: busID, DriverType: t}
	}
	return a, nil
}

func loaded(t *testing.T, gw *fakeGateway, store session.Store, opts ...Option) *Flow {
	t.Helper()
	f := New("driver-1", &fakeDirectory{buses: fleet}, gw, store, opts...)
	if _, err := f.LoadBuses(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return f
}

func TestExpresswayScenario(t *testing.T) {
	store := session.NewMemoryStore()
	gw := &fakeGateway{resp: domain.Assignment{ID: "a-9", BusID: 2, BusNumber: "EX-2002", DriverType: domain.ServiceExpressway}}
	f := loaded(t, gw, store)

	buses := f.SelectDriverType(domain.ServiceExpressway)
	if len(buses) != 2 || buses[0].ID != 2 || buses[1].ID != 3 {
		t.Fatalf("unexpected filtered buses %+v", buses)
	}
	if !f.SelectBus(2) {
		t.Fatalf("expected bus 2 selected")
	}

	a, err := f.Commit(context.Background())
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if a.ID != "a-9" {
		t.Fatalf("unexpected assignment %+v", a)
	}

	got, err := store.Get(context.Background())
	want := session.Session{DriverType: domain.ServiceExpressway, BusID: 2, BusNumber: "EX-2002", AssignmentID: "a-9"}
	if err != nil || got == nil || *got != want {
		t.Fatalf("unexpected session %+v %v", got, err)
	}
	if f.State().Committing {
		t.Fatalf("commit flag left set")
	}
}

func TestFilterIsExact(t *testing.T) {
	f := loaded(t, &fakeGateway{}, session.NewMemoryStore())
	for _, st := range []domain.ServiceType{domain.ServiceNormal, domain.ServiceExpressway} {
		buses := f.SelectDriverType(st)
		want := 0
		for _, b := range fleet {
			if b.ServiceType == st {
				want++
			}
		}
		if len(buses) != want {
			t.Fatalf("%s: got %d buses want %d", st, len(buses), want)
		}
		for _, b := range buses {
			if b.ServiceType != st {
				t.Fatalf("%s: bus %d has type %s", st, b.ID, b.ServiceType)
			}
		}
	}
}

func TestSelectBusGuards(t *testing.T) {
	f := loaded(t, &fakeGateway{}, session.NewMemoryStore())

	if f.SelectBus(2) {
		t.Fatalf("bus selected before a type was chosen")
	}
	if f.SelectBus(0) {
		t.Fatalf("zero bus id reported as selected")
	}
	f.SelectDriverType(domain.ServiceNormal)
	if f.SelectBus(2) {
		t.Fatalf("expressway bus selected under normal type")
	}
	if f.SelectBus(0) {
		t.Fatalf("zero bus id reported as selected")
	}
	if !f.SelectBus(1) {
		t.Fatalf("expected bus 1 selected")
	}

	// switching type resets the selection
	f.SelectDriverType(domain.ServiceExpressway)
	if f.State().BusID != 0 {
		t.Fatalf("selection survived type change")
	}
	// reselecting the same type keeps it
	f.SelectBus(3)
	f.SelectDriverType(domain.ServiceExpressway)
	if f.State().BusID != 3 {
		t.Fatalf("selection lost on same-type reselect")
	}
}

func TestCommitValidatesLocally(t *testing.T) {
	gw := &fakeGateway{}
	f := loaded(t, gw, session.NewMemoryStore())

	if _, err := f.Commit(context.Background()); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error without type, got %v", err)
	}
	f.SelectDriverType(domain.ServiceNormal)
	if _, err := f.Commit(context.Background()); !apperr.IsValidation(err) {
		t.Fatalf("expected validation error without bus, got %v", err)
	}
	if gw.calls.Load() != 0 {
		t.Fatalf("gateway called %d times", gw.calls.Load())
	}
}

func TestDoubleCommitCallsGatewayOnce(t *testing.T) {
	gw := &fakeGateway{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f := loaded(t, gw, session.NewMemoryStore())
	f.SelectDriverType(domain.ServiceExpressway)
	f.SelectBus(3)

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.Commit(context.Background())
	}()

	select {
	case <-gw.entered:
	case <-time.After(time.Second):
		t.Fatalf("first commit never reached the gateway")
	}
	if _, err := f.Commit(context.Background()); !errors.Is(err, apperr.ErrCommitInFlight) {
		t.Fatalf("expected in-flight error, got %v", err)
	}
	close(gw.release)
	wg.Wait()

	if firstErr != nil {
		t.Fatalf("first commit: %v", firstErr)
	}
	if gw.calls.Load() != 1 {
		t.Fatalf("gateway called %d times", gw.calls.Load())
	}
}

func TestConflictLeavesSessionUnchanged(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	gw := &fakeGateway{err: apperr.ConflictError{Resource: "assignment", Msg: "driver already assigned"}}
	f := loaded(t, gw, store)
	f.SelectDriverType(domain.ServiceExpressway)
	f.SelectBus(2)

	if _, err := f.Commit(ctx); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if s, _ := store.Get(ctx); s != nil {
		t.Fatalf("session written on conflict: %+v", s)
	}
	st := f.State()
	if st.BusID != 2 || st.DriverType != domain.ServiceExpressway || st.LastError == "" {
		t.Fatalf("selection not retained: %+v", st)
	}

	// a retry after the conflict clears goes through
	gw.err = nil
	if _, err := f.Commit(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !store.Has(ctx) {
		t.Fatalf("expected session after retry")
	}
}

func TestCommitRefusesWhenSessionExists(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore()
	prior := session.Session{DriverType: domain.ServiceNormal, BusID: 1, BusNumber: "N-101", AssignmentID: "a-0"}
	_ = store.Set(ctx, prior)

	gw := &fakeGateway{}
	f := loaded(t, gw, store)
	f.SelectDriverType(domain.ServiceExpressway)
	f.SelectBus(2)

	if _, err := f.Commit(ctx); !errors.Is(err, apperr.ErrAlreadyAssigned) {
		t.Fatalf("expected already assigned, got %v", err)
	}
	if gw.calls.Load() != 0 {
		t.Fatalf("gateway reached with a live session")
	}
	if s, _ := store.Get(ctx); s == nil || *s != prior {
		t.Fatalf("session changed: %+v", s)
	}
}

func TestNotFoundReloadsBuses(t *testing.T) {
	dir := &fakeDirectory{buses: fleet}
	gw := &fakeGateway{err: apperr.NotFoundError{Resource: "bus"}}
	f := New("driver-1", dir, gw, session.NewMemoryStore())
	if _, err := f.LoadBuses(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	f.SelectDriverType(domain.ServiceExpressway)
	f.SelectBus(3)

	dir.buses = fleet[:2] // bus 3 retired
	if _, err := f.Commit(context.Background()); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if dir.calls.Load() != 2 {
		t.Fatalf("expected directory reload, got %d calls", dir.calls.Load())
	}
	st := f.State()
	if st.BusID != 0 || len(st.Filtered) != 1 {
		t.Fatalf("vanished bus still offered: %+v", st)
	}
}

func TestLoadFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := &fakeDirectory{err: apperr.NetworkError{Op: "list buses", Status: 503}}
	store := session.NewMemoryStore()
	f := New("driver-1", dir, &fakeGateway{}, store)

	if _, err := f.LoadBuses(ctx); !apperr.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
	if f.State().Loaded || store.Has(ctx) {
		t.Fatalf("failed load changed state")
	}

	dir.err = nil
	dir.buses = fleet
	if _, err := f.LoadBuses(ctx); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !f.State().Loaded {
		t.Fatalf("expected loaded after retry")
	}
}

func TestNoBusesOfType(t *testing.T) {
	f := New("driver-1", &fakeDirectory{buses: fleet[:1]}, &fakeGateway{}, session.NewMemoryStore())
	_, _ = f.LoadBuses(context.Background())
	f.SelectDriverType(domain.ServiceExpressway)
	if !f.NoBusesOfType() {
		t.Fatalf("expected empty state")
	}
	f.SelectDriverType(domain.ServiceNormal)
	if f.NoBusesOfType() {
		t.Fatalf("normal buses exist")
	}
}

func TestDefaultTypeIsNonBinding(t *testing.T) {
	f := loaded(t, &fakeGateway{}, session.NewMemoryStore(), WithDefaultType(domain.ServiceExpressway))
	st := f.State()
	if st.DriverType != domain.ServiceExpressway || len(st.Filtered) != 2 {
		t.Fatalf("default type not applied: %+v", st)
	}
	if got := f.SelectDriverType(domain.ServiceNormal); len(got) != 2 || got[0].ServiceType != domain.ServiceNormal {
		t.Fatalf("could not switch type: %+v", got)
	}
}

func TestReduceDoesNotAliasInput(t *testing.T) {
	buses := append([]domain.Bus(nil), fleet...)
	s := Reduce(State{}, BusesLoaded{Buses: buses})
	buses[0].Number = "changed"
	if s.Buses[0].Number != "N-101" {
		t.Fatalf("state aliases caller slice")
	}
	if next := Reduce(s, BusSelected{BusID: 1}); next.BusID != 0 {
		t.Fatalf("bus selected without type")
	}
}
