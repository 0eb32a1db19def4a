package tracking

import "time"

type Point struct {
	ID         int64     `json:"id"`
	TripID     string    `json:"trip_id"`
	Lat        float64   `json:"lat" validate:"latitude"`
	Lng        float64   `json:"lng" validate:"longitude"`
	SpeedMps   float64   `json:"speed_mps" validate:"gte=0"`
	AccuracyM  float64   `json:"accuracy_m" validate:"gte=0"`
	RecordedAt time.Time `json:"recorded_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type Summary struct {
	TripID        string  `json:"trip_id"`
	BusID         int64   `json:"bus_id"`
	Status        string  `json:"status"`
	PointCount    int     `json:"point_count"`
	DistanceM     float64 `json:"distance_m"`
	DurationSec   int64   `json:"duration_sec"`
	AverageSpeedM float64 `json:"average_speed_mps"`
}
