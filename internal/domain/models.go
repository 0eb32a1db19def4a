package domain

import (
	"fmt"
	"strings"
	"time"
)

// ServiceType is the service category of a bus. A driver's type for a duty
// session uses the same values.
type ServiceType string

const (
	ServiceExpressway ServiceType = "expressway"
	ServiceNormal     ServiceType = "normal"
)

func ParseServiceType(s string) (ServiceType, error) {
	switch ServiceType(strings.ToLower(strings.TrimSpace(s))) {
	case ServiceExpressway:
		return ServiceExpressway, nil
	case ServiceNormal:
		return ServiceNormal, nil
	}
	return "", fmt.Errorf("unknown service type %q", s)
}

func (t ServiceType) Valid() bool {
	return t == ServiceExpressway || t == ServiceNormal
}

type Bus struct {
	ID           int64       `json:"id"`
	Number       string      `json:"number"`
	ServiceType  ServiceType `json:"service_type"`
	Capacity     int         `json:"capacity"`
	RouteID      *int64      `json:"route_id,omitempty"`
	RouteSummary string      `json:"route_summary,omitempty"`
}

type Assignment struct {
	ID         string      `json:"id"`
	DriverID   string      `json:"driver_id"`
	BusID      int64       `json:"bus_id"`
	BusNumber  string      `json:"bus_number,omitempty"`
	DriverType ServiceType `json:"driver_type"`
	AssignedAt time.Time   `json:"assigned_at"`
	EndedAt    *time.Time  `json:"ended_at,omitempty"`
}

func (a Assignment) Active() bool { return a.EndedAt == nil }

// Position is a single device location sample.
type Position struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	TimestampMs int64   `json:"timestamp_ms"`
	SpeedMps    float64 `json:"speed_mps,omitempty"`
	Accuracy    float64 `json:"accuracy,omitempty"`
}

func (p Position) Time() time.Time { return time.UnixMilli(p.TimestampMs) }
