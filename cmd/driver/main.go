package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-transitportal/internal/config"
	"backend-transitportal/internal/db"
	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/driver/consumer"
	"backend-transitportal/internal/driver/duty"
	"backend-transitportal/internal/driver/gateway"
	"backend-transitportal/internal/driver/geosource"
	"backend-transitportal/internal/driver/selection"
	"backend-transitportal/internal/driver/session"
	"backend-transitportal/internal/driver/tracker"
	"backend-transitportal/internal/metrics"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/logging"
	"backend-transitportal/internal/trip"

	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig   func() config.Config
	connectRedis func(config.Config) *redis.Client
	notify       func(chan<- os.Signal, ...os.Signal)
	run          func(context.Context, Agent, <-chan os.Signal) error
}

// Agent is everything Run needs to put one driver on duty.
type Agent struct {
	Config  config.Config
	Store   session.Store
	Gateway *gateway.Client
	Source  geosource.Source
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:   config.Load,
		connectRedis: db.ConnectRedis,
		notify:       signal.Notify,
		run:          Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logger := logging.New("driver-agent").With("driver_id", cfg.DriverID)
	if cfg.DriverID == "" {
		logger.Error("DRIVER_ID is required")
		return
	}

	m := metrics.NewCollector()
	if cfg.MetricsAddr != "" {
		srv := m.Serve(cfg.MetricsAddr)
		defer srv.Close()
	}

	var store session.Store
	if rdb := deps.connectRedis(cfg); rdb != nil {
		defer rdb.Close()
		store = session.NewRedisStore(rdb, cfg.DriverID)
	} else {
		logger.Warn("redis not configured, session will not survive a restart")
		store = session.NewMemoryStore()
	}

	source, err := routeSource(cfg)
	if err != nil {
		logger.Error("invalid driver route", "error", err)
		return
	}

	a := Agent{
		Config: cfg,
		Store:  store,
		Gateway: gateway.New(cfg.APIBaseURL,
			gateway.WithToken(cfg.DriverToken),
			gateway.WithTimeout(cfg.GatewayTimeout),
			gateway.WithMetrics(m),
		),
		Source:  source,
		Metrics: m,
		Logger:  logger,
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), a, signals); err != nil {
		logger.Error("driver agent exited with error", "error", err)
	}
}

func routeSource(cfg config.Config) (geosource.Source, error) {
	points, err := geosource.ParseRoute(cfg.DriverRoute)
	if err != nil {
		return nil, err
	}
	route, err := geosource.NewRouteProvider(points, cfg.DriverSpeedMps)
	if err != nil {
		return nil, err
	}
	return geosource.NewPoller(route, cfg.TrackingInterval), nil
}

// Run restores or creates the assignment, starts a trip, and tracks it until
// a signal arrives or ctx ends.
func Run(ctx context.Context, a Agent, signals <-chan os.Signal) error {
	logger := a.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	gw := a.Gateway

	loopOpts := []tracker.Option{tracker.WithReporter(gw), tracker.WithChecker(gw), tracker.WithLogger(logger)}
	if a.Metrics != nil {
		loopOpts = append(loopOpts, tracker.WithMetrics(a.Metrics))
	}
	loop := tracker.New(a.Source, a.Store, loopOpts...)
	defer loop.Stop()

	shift := duty.New(a.Store, gw, loop, duty.WithLogger(logger))
	if _, err := shift.Reconcile(ctx); err != nil {
		logger.Warn("could not reconcile session with server", "error", err)
	}

	if !a.Store.Has(ctx) {
		if err := assign(ctx, a, logger); err != nil {
			return err
		}
	}

	trips := consumer.NewTrips(a.Store, gw)
	t, err := startTrip(ctx, trips)
	if err != nil {
		return fmt.Errorf("start trip: %w", err)
	}
	if err := loop.Start(ctx, t.ID); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}
	logger.Info("on duty", "trip_id", t.ID, "bus_id", t.BusID)

	select {
	case <-signals:
	case <-ctx.Done():
	}

	loop.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := trips.End(shutdownCtx, t.ID); err != nil {
		logger.Warn("could not end trip", "trip_id", t.ID, "error", err)
	}
	if a.Config.DriverEndOnExit {
		if err := shift.EndAssignment(shutdownCtx); err != nil {
			return fmt.Errorf("end assignment: %w", err)
		}
	}
	return nil
}

// assign runs the selection flow for the configured bus.
func assign(ctx context.Context, a Agent, logger *slog.Logger) error {
	if a.Config.DriverBusID == 0 {
		return apperr.ErrNoAssignment
	}

	var opts []selection.Option
	if profile, err := a.Gateway.Profile(ctx); err != nil {
		logger.Warn("could not load driver profile", "error", err)
	} else if profile.DriverType != nil {
		opts = append(opts, selection.WithDefaultType(*profile.DriverType))
	}
	flow := selection.New(a.Config.DriverID, a.Gateway, a.Gateway, a.Store, append(opts, selection.WithLogger(logger))...)

	if _, err := flow.LoadBuses(ctx); err != nil {
		return fmt.Errorf("load buses: %w", err)
	}
	if a.Config.DriverType != "" {
		t, err := domain.ParseServiceType(a.Config.DriverType)
		if err != nil {
			return apperr.ValidationError{Field: "driver_type", Msg: err.Error()}
		}
		flow.SelectDriverType(t)
	}
	if flow.NoBusesOfType() {
		return fmt.Errorf("no %s buses available", flow.State().DriverType)
	}
	if !flow.SelectBus(a.Config.DriverBusID) {
		return apperr.ValidationError{Field: "bus_id", Msg: fmt.Sprintf("bus %d is not available for driver type %q", a.Config.DriverBusID, flow.State().DriverType)}
	}
	_, err := flow.Commit(ctx)
	return err
}

// startTrip starts a trip, or picks up the bus's trip that is still active
// from an earlier run.
func startTrip(ctx context.Context, trips *consumer.Trips) (trip.Trip, error) {
	t, err := trips.Start(ctx)
	if err == nil || !apperr.IsConflict(err) {
		return t, err
	}
	schedule, lerr := trips.Schedule(ctx)
	if lerr != nil {
		return trip.Trip{}, err
	}
	for _, s := range schedule {
		if s.Status == trip.StatusActive {
			return s, nil
		}
	}
	return trip.Trip{}, err
}
