package ticket

import "time"

const (
	StatusIssued = "issued"
	StatusUsed   = "used"
	StatusVoid   = "void"
)

type Ticket struct {
	ID          string     `json:"id"`
	Code        string     `json:"code"`
	BusID       int64      `json:"bus_id"`
	PassengerID *string    `json:"passenger_id,omitempty"`
	Status      string     `json:"status"`
	IssuedAt    time.Time  `json:"issued_at"`
	ScannedAt   *time.Time `json:"scanned_at,omitempty"`
}

type ScanRequest struct {
	BusID int64  `json:"bus_id" validate:"required,gt=0"`
	Code  string `json:"code" validate:"required,max=128"`
}
