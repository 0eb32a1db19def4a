package server

import (
	"log/slog"

	"backend-transitportal/internal/assignment"
	"backend-transitportal/internal/auth"
	"backend-transitportal/internal/bus"
	"backend-transitportal/internal/config"
	"backend-transitportal/internal/db"
	"backend-transitportal/internal/incident"
	"backend-transitportal/internal/metrics"
	"backend-transitportal/internal/shared/logging"
	"backend-transitportal/internal/stream"
	"backend-transitportal/internal/ticket"
	"backend-transitportal/internal/tracking"
	"backend-transitportal/internal/trip"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     db.Querier
	Redis  *redis.Client
	Stream *stream.Hub

	metrics   *metrics.Collector
	positions tracking.PositionPublisher
	events    assignment.EventPublisher
	logger    *slog.Logger
}

type Option func(*Server)

func WithMetrics(c *metrics.Collector) Option { return func(s *Server) { s.metrics = c } }

func WithPositionPublisher(p tracking.PositionPublisher) Option {
	return func(s *Server) { s.positions = p }
}

func WithEvents(p assignment.EventPublisher) Option { return func(s *Server) { s.events = p } }
func WithLogger(l *slog.Logger) Option              { return func(s *Server) { s.logger = l } }

func NewServer(cfg config.Config, pool db.Querier, redisClient *redis.Client, opts ...Option) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{AllowOrigins: corsOrigins(cfg.CORSOrigins)}))

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pool,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	if s.metrics != nil {
		s.App.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	assignmentOpts := []assignment.Option{assignment.WithLogger(s.logger)}
	trackingOpts := []tracking.Option{tracking.WithLogger(s.logger)}
	if s.events != nil {
		assignmentOpts = append(assignmentOpts, assignment.WithEvents(s.events))
	}
	if s.metrics != nil {
		assignmentOpts = append(assignmentOpts, assignment.WithMetrics(s.metrics))
		trackingOpts = append(trackingOpts, tracking.WithMetrics(s.metrics))
	}
	if s.positions != nil {
		trackingOpts = append(trackingOpts, tracking.WithPublisher(s.positions))
	}

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB), jwtMiddleware)
	bus.RegisterRoutes(s.App.Group("/buses"), bus.NewService(s.DB), jwtMiddleware)
	assignment.RegisterRoutes(s.App.Group("/assignments"), assignment.NewService(s.DB, assignmentOpts...), jwtMiddleware)
	trip.RegisterRoutes(s.App.Group("/trips"), trip.NewService(s.DB), jwtMiddleware)
	tracking.RegisterRoutes(s.App.Group("/tracking"), tracking.NewService(s.DB, s.Stream, trackingOpts...), jwtMiddleware)
	incident.RegisterRoutes(s.App.Group("/incidents"), incident.NewService(s.DB), jwtMiddleware)
	ticket.RegisterRoutes(s.App.Group("/tickets"), ticket.NewService(s.DB), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}

func corsOrigins(v string) string {
	if v == "" {
		return "*"
	}
	return v
}
