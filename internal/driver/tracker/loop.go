// Package tracker runs the location sampling loop bound to an active trip.
//
// A Loop holds at most one live subscription to its Source. Start is gated on
// the assignment session; Stop is always safe to call, from any state and any
// number of times, and once it returns no sample or error callback touches
// the loop again and nothing more is reported.
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/driver/geosource"
	"backend-transitportal/internal/driver/session"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/logging"
)

// ErrStopped is returned by Start when Stop ran before the subscription was
// in place.
var ErrStopped = errors.New("tracking stopped while starting")

// Reporter is the sink for accepted samples.
type Reporter interface {
	ReportLocation(ctx context.Context, tripID string, p domain.Position) error
}

// AssignmentChecker confirms the server still holds the driver's assignment.
type AssignmentChecker interface {
	GetCurrent(ctx context.Context) (*domain.Assignment, error)
}

type Metrics interface {
	TrackingSetActive(active bool)
	SampleAccepted()
	SampleDropped()
	LocationFailed()
}

// State is transient and starts over as Idle on every process start.
type State struct {
	IsTracking   bool
	TripID       string
	LastPosition *domain.Position
	LastError    string
	ReportError  string
}

type Loop struct {
	source   geosource.Source
	store    session.Store
	reporter Reporter
	checker  AssignmentChecker
	metrics  Metrics
	logger   *slog.Logger

	mu       sync.Mutex
	gen      uint64
	starting bool
	state    State
	sub      geosource.Subscription
	cancel   context.CancelFunc
	done     chan struct{}

	latestSlot chan domain.Position
}

type Option func(*Loop)

func WithReporter(r Reporter) Option         { return func(l *Loop) { l.reporter = r } }
func WithChecker(c AssignmentChecker) Option { return func(l *Loop) { l.checker = c } }
func WithMetrics(m Metrics) Option           { return func(l *Loop) { l.metrics = m } }
func WithLogger(lg *slog.Logger) Option      { return func(l *Loop) { l.logger = lg } }

func New(source geosource.Source, store session.Store, opts ...Option) *Loop {
	l := &Loop{source: source, store: store, logger: logging.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	s := l.state
	if s.LastPosition != nil {
		p := *s.LastPosition
		s.LastPosition = &p
	}
	return s
}

// Start begins sampling for tripID. Nothing is subscribed unless the driver
// holds an assignment session. A Stop that lands while Start is still
// checking or subscribing wins: Start then returns ErrStopped.
func (l *Loop) Start(ctx context.Context, tripID string) error {
	if !l.store.Has(ctx) {
		return apperr.ErrNoAssignment
	}

	latest := make(chan domain.Position, 1)
	l.mu.Lock()
	if l.state.IsTracking || l.starting {
		l.mu.Unlock()
		return apperr.ErrAlreadyTracking
	}
	l.starting = true
	l.gen++
	gen := l.gen
	l.state = State{TripID: tripID}
	l.latestSlot = latest
	l.mu.Unlock()

	if err := l.checkAssignment(ctx); err != nil {
		l.abortStart(gen)
		return err
	}
	if !l.stillStarting(gen) {
		return ErrStopped
	}

	sub, err := l.source.Subscribe(l.onSample(gen), l.onError(gen))
	if err != nil {
		l.abortStart(gen)
		return apperr.LocationError{Fatal: true, Err: err}
	}

	l.mu.Lock()
	if l.gen != gen || !l.starting {
		l.mu.Unlock()
		sub.Cancel()
		return ErrStopped
	}
	rctx, cancel := context.WithCancel(context.Background())
	l.sub = sub
	l.cancel = cancel
	l.done = make(chan struct{})
	l.starting = false
	l.state.IsTracking = true
	go l.report(rctx, gen, tripID, latest, l.done)
	if l.metrics != nil {
		l.metrics.TrackingSetActive(true)
	}
	l.mu.Unlock()

	l.logger.Info("tracking started", "trip_id", tripID)
	return nil
}

func (l *Loop) stillStarting(gen uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen == gen && l.starting
}

// abortStart releases the start slot unless a Stop already took it.
func (l *Loop) abortStart(gen uint64) {
	l.mu.Lock()
	if l.gen == gen {
		l.starting = false
		l.latestSlot = nil
	}
	l.mu.Unlock()
}

func (l *Loop) checkAssignment(ctx context.Context) error {
	if l.checker == nil {
		return nil
	}
	s, err := l.store.Get(ctx)
	if err != nil || s == nil {
		return apperr.ErrNoAssignment
	}
	cur, err := l.checker.GetCurrent(ctx)
	if err != nil {
		return err
	}
	if cur == nil || (s.AssignmentID != "" && cur.ID != s.AssignmentID) {
		return apperr.ErrAssignmentEnded
	}
	return nil
}

// Stop cancels the subscription and the reporter and waits for both.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.gen++
	wasTracking := l.state.IsTracking
	sub, cancel, done := l.sub, l.cancel, l.done
	l.sub, l.cancel, l.done, l.latestSlot = nil, nil, nil, nil
	l.starting = false
	l.state.IsTracking = false
	if wasTracking && l.metrics != nil {
		l.metrics.TrackingSetActive(false)
	}
	l.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if cancel != nil {
		cancel()
		<-done
	}
	if wasTracking {
		l.logger.Info("tracking stopped")
	}
}

func (l *Loop) onSample(gen uint64) func(domain.Position) {
	return func(p domain.Position) {
		l.mu.Lock()
		if l.gen != gen {
			l.mu.Unlock()
			return
		}
		if last := l.state.LastPosition; last != nil && p.TimestampMs < last.TimestampMs {
			l.mu.Unlock()
			if l.metrics != nil {
				l.metrics.SampleDropped()
			}
			return
		}
		l.state.LastPosition = &p
		slot := l.latestSlot
		l.mu.Unlock()

		if l.metrics != nil {
			l.metrics.SampleAccepted()
		}
		if slot != nil {
			offer(slot, p)
		}
	}
}

func (l *Loop) onError(gen uint64) func(error) {
	return func(err error) {
		lerr := apperr.LocationError{Err: err}
		l.mu.Lock()
		if l.gen != gen {
			l.mu.Unlock()
			return
		}
		l.state.LastError = lerr.Error()
		l.mu.Unlock()

		if l.metrics != nil {
			l.metrics.LocationFailed()
		}
		l.logger.Warn("location sample failed", "error", err)
	}
}

// offer replaces whatever sample is waiting in the slot. Only the sample
// callback goroutine writes to the slot.
func offer(slot chan domain.Position, p domain.Position) {
	select {
	case slot <- p:
		return
	default:
	}
	select {
	case <-slot:
	default:
	}
	select {
	case slot <- p:
	default:
	}
}

func (l *Loop) report(ctx context.Context, gen uint64, tripID string, slot <-chan domain.Position, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-slot:
			if l.reporter == nil {
				continue
			}
			err := l.reporter.ReportLocation(ctx, tripID, p)
			if ctx.Err() != nil {
				return
			}
			l.mu.Lock()
			if l.gen == gen {
				l.state.ReportError = ""
				if err != nil {
					l.state.ReportError = err.Error()
				}
			}
			l.mu.Unlock()
			if err != nil {
				l.logger.Warn("location report failed", "trip_id", tripID, "error", err)
			}
		}
	}
}
