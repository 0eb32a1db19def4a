// Package selection drives the bus selection screen: load the directory,
// pick a driver type, pick a bus of that type, and commit the assignment.
package selection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/driver/session"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/logging"
)

type BusDirectory interface {
	ListBuses(ctx context.Context, serviceType *domain.ServiceType) ([]domain.Bus, error)
}

type AssignmentGateway interface {
	Assign(ctx context.Context, driverID string, busID int64, driverType domain.ServiceType) (domain.Assignment, error)
}

type Flow struct {
	driverID    string
	directory   BusDirectory
	gateway     AssignmentGateway
	store       session.Store
	defaultType domain.ServiceType
	logger      *slog.Logger

	mu    sync.Mutex
	state State
}

type Option func(*Flow)

// WithDefaultType pre-selects the driver type from the driver's profile once
// buses are loaded. The driver can still pick the other type.
func WithDefaultType(t domain.ServiceType) Option { return func(f *Flow) { f.defaultType = t } }
func WithLogger(l *slog.Logger) Option            { return func(f *Flow) { f.logger = l } }

func New(driverID string, dir BusDirectory, gw AssignmentGateway, store session.Store, opts ...Option) *Flow {
	f := &Flow{driverID: driverID, directory: dir, gateway: gw, store: store, logger: logging.Discard()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Flow) dispatch(e Event) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Reduce(f.state, e)
	return f.state
}

// State returns a snapshot of the flow.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LoadBuses fetches the whole directory once. A failure leaves the state and
// the session as they were.
func (f *Flow) LoadBuses(ctx context.Context) ([]domain.Bus, error) {
	buses, err := f.directory.ListBuses(ctx, nil)
	if err != nil {
		return nil, err
	}
	st := f.dispatch(BusesLoaded{Buses: buses})
	if st.DriverType == "" && f.defaultType.Valid() {
		f.dispatch(TypeSelected{Type: f.defaultType})
	}
	return buses, nil
}

// SelectDriverType filters the loaded buses locally and returns the matches.
// Changing the type drops the selected bus.
func (f *Flow) SelectDriverType(t domain.ServiceType) []domain.Bus {
	st := f.dispatch(TypeSelected{Type: t})
	return append([]domain.Bus(nil), st.Filtered...)
}

// SelectBus reports whether busID is now selected. It is a no-op before a
// type is chosen or for a bus outside the filtered list.
func (f *Flow) SelectBus(busID int64) bool {
	if busID <= 0 {
		return false
	}
	return f.dispatch(BusSelected{BusID: busID}).BusID == busID
}

// NoBusesOfType is true when the chosen type has no bus to offer.
func (f *Flow) NoBusesOfType() bool {
	st := f.State()
	return st.Loaded && st.DriverType != "" && len(st.Filtered) == 0
}

// Commit assigns the selected bus on the server and stores the session. Only
// one commit runs at a time; a second call while one is in flight returns
// ErrCommitInFlight without reaching the gateway.
func (f *Flow) Commit(ctx context.Context) (domain.Assignment, error) {
	f.mu.Lock()
	if f.state.Committing {
		f.mu.Unlock()
		return domain.Assignment{}, apperr.ErrCommitInFlight
	}
	if f.state.DriverType == "" {
		f.mu.Unlock()
		return domain.Assignment{}, apperr.ValidationError{Field: "driver_type", Msg: "required"}
	}
	bus, ok := f.state.SelectedBus()
	if !ok {
		f.mu.Unlock()
		return domain.Assignment{}, apperr.ValidationError{Field: "bus_id", Msg: "required"}
	}
	driverType := f.state.DriverType
	f.state = Reduce(f.state, CommitStarted{})
	f.mu.Unlock()

	a, err := f.commit(ctx, bus, driverType)
	f.dispatch(CommitFinished{Err: err})
	return a, err
}

func (f *Flow) commit(ctx context.Context, bus domain.Bus, driverType domain.ServiceType) (domain.Assignment, error) {
	if f.store.Has(ctx) {
		return domain.Assignment{}, apperr.ErrAlreadyAssigned
	}

	a, err := f.gateway.Assign(ctx, f.driverID, bus.ID, driverType)
	if err != nil {
		f.logger.Warn("assignment commit failed", "bus_id", bus.ID, "error", err)
		if apperr.IsNotFound(err) {
			if _, lerr := f.LoadBuses(ctx); lerr != nil {
				f.logger.Warn("reload buses failed", "error", lerr)
			}
		}
		return domain.Assignment{}, err
	}

	s := session.Session{
		DriverType:   driverType,
		BusID:        bus.ID,
		BusNumber:    bus.Number,
		AssignmentID: a.ID,
	}
	if a.BusID != 0 {
		s.BusID = a.BusID
	}
	if a.BusNumber != "" {
		s.BusNumber = a.BusNumber
	}
	if a.DriverType.Valid() {
		s.DriverType = a.DriverType
	}
	if err := f.store.Set(ctx, s); err != nil {
		return a, fmt.Errorf("store session: %w", err)
	}
	f.logger.Info("bus assigned", "assignment_id", a.ID, "bus_id", s.BusID, "bus_number", s.BusNumber, "driver_type", s.DriverType)
	return a, nil
}
