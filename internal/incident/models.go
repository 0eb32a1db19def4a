package incident

import "time"

type Incident struct {
	ID           string    `json:"id"`
	DriverID     string    `json:"driver_id"`
	BusID        int64     `json:"bus_id" validate:"required,gt=0"`
	AssignmentID string    `json:"assignment_id,omitempty"`
	Category     string    `json:"category" validate:"required,oneof=breakdown accident delay passenger other"`
	Description  string    `json:"description" validate:"max=2000"`
	Lat          *float64  `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lng          *float64  `json:"lng,omitempty" validate:"omitempty,longitude"`
	CreatedAt    time.Time `json:"created_at"`
}
