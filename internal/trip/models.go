package trip

import "time"

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type Trip struct {
	ID             string     `json:"id"`
	AssignmentID   string     `json:"assignment_id"`
	BusID          int64      `json:"bus_id"`
	DriverID       string     `json:"driver_id"`
	Status         string     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	TotalDistanceM float64    `json:"total_distance_m"`
}

type StartRequest struct {
	BusID int64 `json:"bus_id" validate:"omitempty,gt=0"`
}
