package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"backend-transitportal/internal/db"
	"backend-transitportal/internal/publisher"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/geo"
	"backend-transitportal/internal/shared/logging"

	"github.com/jackc/pgx/v5"
)

type Broadcaster interface {
	Broadcast(tripID string, payload []byte)
}

type PositionPublisher interface {
	PublishPosition(msg publisher.PositionMessage) error
}

type Metrics interface {
	LocationReported(err error)
}

type Service struct {
	db      db.Querier
	hub     Broadcaster
	pub     PositionPublisher
	metrics Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithPublisher(p PositionPublisher) Option { return func(s *Service) { s.pub = p } }
func WithMetrics(m Metrics) Option             { return func(s *Service) { s.metrics = m } }
func WithLogger(l *slog.Logger) Option         { return func(s *Service) { s.logger = l } }

func NewService(db db.Querier, hub Broadcaster, opts ...Option) *Service {
	s := &Service{db: db, hub: hub, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPoint records a position for an active trip driven by driverID and
// fans it out to live watchers.
func (s *Service) AddPoint(ctx context.Context, driverID, tripID string, p Point) (Point, error) {
	p, err := s.addPoint(ctx, driverID, tripID, p)
	if s.metrics != nil {
		s.metrics.LocationReported(err)
	}
	return p, err
}

func (s *Service) addPoint(ctx context.Context, driverID, tripID string, p Point) (Point, error) {
	var (
		busID  int64
		owner  string
		status string
	)
	err := s.db.QueryRow(ctx, `SELECT bus_id, driver_id, status FROM trips WHERE id=$1`, tripID).Scan(&busID, &owner, &status)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != driverID) {
		return Point{}, apperr.NotFoundError{Resource: "trip"}
	}
	if err != nil {
		return Point{}, err
	}
	if status != "active" {
		return Point{}, apperr.ConflictError{Resource: "trip", Msg: "trip is not active"}
	}
	if p.RecordedAt.IsZero() {
		p.RecordedAt = time.Now()
	}

	var lastLat, lastLng float64
	hasLast := true
	err = s.db.QueryRow(ctx, `
		SELECT lat, lng FROM trip_points
		WHERE trip_id=$1
		ORDER BY recorded_at DESC
		LIMIT 1
	`, tripID).Scan(&lastLat, &lastLng)
	if errors.Is(err, pgx.ErrNoRows) {
		hasLast = false
	} else if err != nil {
		return Point{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO trip_points (trip_id, lat, lng, speed_mps, accuracy_m, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING id, created_at
	`, tripID, p.Lat, p.Lng, p.SpeedMps, p.AccuracyM, p.RecordedAt)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return Point{}, err
	}
	p.TripID = tripID

	if hasLast {
		deltaM := geo.HaversineKm(lastLat, lastLng, p.Lat, p.Lng) * 1000
		if _, err := s.db.Exec(ctx, `
			UPDATE trips SET total_distance_m = total_distance_m + $2 WHERE id=$1
		`, tripID, deltaM); err != nil {
			s.logger.Warn("trip distance not updated", "trip_id", tripID, "error", err)
		}
	}

	s.fanOut(busID, p)
	return p, nil
}

func (s *Service) fanOut(busID int64, p Point) {
	msg := publisher.PositionMessage{
		BusID:     busID,
		TripID:    p.TripID,
		Timestamp: p.RecordedAt,
		Lat:       p.Lat,
		Lng:       p.Lng,
		SpeedMps:  p.SpeedMps,
	}
	if s.hub != nil {
		payload, _ := json.Marshal(msg)
		s.hub.Broadcast(p.TripID, payload)
	}
	if s.pub != nil {
		if err := s.pub.PublishPosition(msg); err != nil {
			s.logger.Warn("position not published", "trip_id", p.TripID, "error", err)
		}
	}
}

func (s *Service) Summary(ctx context.Context, tripID string) (Summary, error) {
	var (
		sum       Summary
		startedAt time.Time
		endedAt   *time.Time
	)
	row := s.db.QueryRow(ctx, `
		SELECT id, bus_id, status, started_at, ended_at, total_distance_m
		FROM trips WHERE id=$1
	`, tripID)
	if err := row.Scan(&sum.TripID, &sum.BusID, &sum.Status, &startedAt, &endedAt, &sum.DistanceM); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, apperr.NotFoundError{Resource: "trip", Err: err}
		}
		return Summary{}, err
	}

	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM trip_points WHERE trip_id=$1`, tripID).Scan(&sum.PointCount); err != nil {
		return Summary{}, err
	}

	duration := time.Since(startedAt)
	if endedAt != nil {
		duration = endedAt.Sub(startedAt)
	}
	sum.DurationSec = int64(duration.Seconds())
	if duration.Seconds() > 0 {
		sum.AverageSpeedM = sum.DistanceM / duration.Seconds()
	}
	return sum, nil
}

func (s *Service) Points(ctx context.Context, tripID string) ([]Point, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, lat, lng, speed_mps, accuracy_m, recorded_at, created_at
		FROM trip_points WHERE trip_id=$1
		ORDER BY recorded_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []Point{}
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.TripID, &p.Lat, &p.Lng, &p.SpeedMps, &p.AccuracyM, &p.RecordedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}
