package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-transitportal/internal/config"
	"backend-transitportal/internal/db"
	"backend-transitportal/internal/events"
	"backend-transitportal/internal/metrics"
	"backend-transitportal/internal/publisher"
	"backend-transitportal/internal/server"
	"backend-transitportal/internal/shared/logging"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	connectNATS     func(string, publisher.PublisherMetrics) (*publisher.NATSPublisher, error)
	connectAMQP     func(string, *slog.Logger) (*events.Publisher, error)
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, Backends, <-chan os.Signal, ListenFunc) error
}

// Backends are the connections Run serves with and closes on shutdown.
// Everything except the config may be nil.
type Backends struct {
	Postgres *pgxpool.Pool
	Redis    *redis.Client
	NATS     *publisher.NATSPublisher
	Events   *events.Publisher
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		connectNATS:     publisher.NewNATSPublisher,
		connectAMQP:     events.NewPublisher,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logger := logging.New("transit-api")
	b := Backends{Metrics: metrics.NewCollector(), Logger: logger}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		logger.Error("postgres connection failed", "error", err)
	}
	b.Postgres = pg
	b.Redis = deps.connectRedis(cfg)

	if cfg.NATSURL != "" {
		if b.NATS, err = deps.connectNATS(cfg.NATSURL, b.Metrics); err != nil {
			logger.Warn("nats unavailable, live positions stay local", "error", err)
		}
	}
	if cfg.AMQPURL != "" {
		if b.Events, err = deps.connectAMQP(cfg.AMQPURL, logger); err != nil {
			logger.Warn("amqp unavailable, assignment events disabled", "error", err)
		}
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, b, signals, nil); err != nil {
		logger.Error("server exited with error", "error", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, b Backends, signals <-chan os.Signal, listen ListenFunc) error {
	var opts []server.Option
	if b.Metrics != nil {
		opts = append(opts, server.WithMetrics(b.Metrics))
	}
	if b.NATS != nil {
		opts = append(opts, server.WithPositionPublisher(b.NATS))
	}
	if b.Events != nil {
		opts = append(opts, server.WithEvents(b.Events))
	}
	if b.Logger != nil {
		opts = append(opts, server.WithLogger(b.Logger))
	}

	srv := server.NewServer(cfg, querier(b.Postgres), b.Redis, opts...)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	_ = srv.Stream.Close()
	if b.NATS != nil {
		b.NATS.Close()
	}
	if b.Events != nil {
		_ = b.Events.Close()
	}
	if b.Postgres != nil {
		b.Postgres.Close()
	}
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	return nil
}

// querier keeps a nil pool a nil interface.
func querier(pool *pgxpool.Pool) db.Querier {
	if pool == nil {
		return nil
	}
	return pool
}
