// Package consumer holds the features that scope their requests to the
// driver's assigned bus: incident reports, ticket scans and the trip
// schedule. They read the session on every call and never write it.
package consumer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/driver/session"
	"backend-transitportal/internal/incident"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/validate"
	"backend-transitportal/internal/ticket"
	"backend-transitportal/internal/trip"
)

type Scope struct {
	BusID        int64
	BusNumber    string
	DriverType   domain.ServiceType
	AssignmentID string
}

// Current reads the session. A missing or unreadable session is reported as
// false.
func Current(ctx context.Context, store session.Store) (Scope, bool) {
	s, err := store.Get(ctx)
	if err != nil || s == nil {
		return Scope{}, false
	}
	return Scope{BusID: s.BusID, BusNumber: s.BusNumber, DriverType: s.DriverType, AssignmentID: s.AssignmentID}, true
}

func scope(ctx context.Context, store session.Store) (Scope, error) {
	sc, ok := Current(ctx, store)
	if !ok {
		return Scope{}, apperr.ErrNoAssignment
	}
	return sc, nil
}

type IncidentGateway interface {
	CreateIncident(ctx context.Context, in incident.Incident) (incident.Incident, error)
}

type Incidents struct {
	store   session.Store
	gateway IncidentGateway
}

func NewIncidents(store session.Store, gw IncidentGateway) *Incidents {
	return &Incidents{store: store, gateway: gw}
}

// Prefill returns a draft report scoped to the assigned bus.
func (i *Incidents) Prefill(ctx context.Context) (incident.Incident, error) {
	sc, err := scope(ctx, i.store)
	if err != nil {
		return incident.Incident{}, err
	}
	return incident.Incident{BusID: sc.BusID, AssignmentID: sc.AssignmentID}, nil
}

// Submit files the report against the assigned bus. Any bus id on the draft
// is replaced.
func (i *Incidents) Submit(ctx context.Context, in incident.Incident) (incident.Incident, error) {
	sc, err := scope(ctx, i.store)
	if err != nil {
		return incident.Incident{}, err
	}
	in.BusID = sc.BusID
	in.AssignmentID = sc.AssignmentID
	if err := validate.Struct(in); err != nil {
		return incident.Incident{}, err
	}
	return i.gateway.CreateIncident(ctx, in)
}

type TicketGateway interface {
	ScanTicket(ctx context.Context, busID int64, code string) (ticket.Ticket, error)
}

type Tickets struct {
	store   session.Store
	gateway TicketGateway
}

func NewTickets(store session.Store, gw TicketGateway) *Tickets {
	return &Tickets{store: store, gateway: gw}
}

const qrPrefix = "TKT"

// ParseQR reads a ticket QR payload. Printed tickets carry
// "TKT:<bus id>:<code>"; a bare code has no bus and reports busID 0.
func ParseQR(payload string) (busID int64, code string, err error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return 0, "", apperr.ValidationError{Field: "code", Msg: "required"}
	}
	parts := strings.Split(payload, ":")
	switch {
	case len(parts) == 1:
		return 0, payload, nil
	case len(parts) == 3 && parts[0] == qrPrefix:
		busID, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil || busID <= 0 || parts[2] == "" {
			return 0, "", apperr.ValidationError{Field: "code", Msg: fmt.Sprintf("malformed ticket %q", payload)}
		}
		return busID, parts[2], nil
	}
	return 0, "", apperr.ValidationError{Field: "code", Msg: fmt.Sprintf("malformed ticket %q", payload)}
}

// Validate scans a ticket on the assigned bus. A ticket printed for another
// bus is refused without a network call.
func (t *Tickets) Validate(ctx context.Context, qr string) (ticket.Ticket, error) {
	sc, err := scope(ctx, t.store)
	if err != nil {
		return ticket.Ticket{}, err
	}
	busID, code, err := ParseQR(qr)
	if err != nil {
		return ticket.Ticket{}, err
	}
	if busID != 0 && busID != sc.BusID {
		return ticket.Ticket{}, apperr.ValidationError{Field: "bus_id", Msg: fmt.Sprintf("ticket is for another bus, not %s", sc.BusNumber)}
	}
	return t.gateway.ScanTicket(ctx, sc.BusID, code)
}

type TripGateway interface {
	StartTrip(ctx context.Context, busID int64) (trip.Trip, error)
	EndTrip(ctx context.Context, tripID string) (trip.Trip, error)
	ListTrips(ctx context.Context, busID int64) ([]trip.Trip, error)
}

type Trips struct {
	store   session.Store
	gateway TripGateway
}

func NewTrips(store session.Store, gw TripGateway) *Trips {
	return &Trips{store: store, gateway: gw}
}

// Schedule lists the recent trips of the assigned bus.
func (t *Trips) Schedule(ctx context.Context) ([]trip.Trip, error) {
	sc, err := scope(ctx, t.store)
	if err != nil {
		return nil, err
	}
	return t.gateway.ListTrips(ctx, sc.BusID)
}

func (t *Trips) Start(ctx context.Context) (trip.Trip, error) {
	sc, err := scope(ctx, t.store)
	if err != nil {
		return trip.Trip{}, err
	}
	return t.gateway.StartTrip(ctx, sc.BusID)
}

func (t *Trips) End(ctx context.Context, tripID string) (trip.Trip, error) {
	if _, err := scope(ctx, t.store); err != nil {
		return trip.Trip{}, err
	}
	if tripID == "" {
		return trip.Trip{}, apperr.ValidationError{Field: "trip_id", Msg: "required"}
	}
	return t.gateway.EndTrip(ctx, tripID)
}
