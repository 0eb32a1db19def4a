// Package gateway is the driver agent's HTTP client for the transit API:
// the bus directory, the assignment endpoints, location reporting, and the
// trip, incident and ticket endpoints used by downstream consumers.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"backend-transitportal/internal/auth"
	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/incident"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/ticket"
	"backend-transitportal/internal/tracking"
	"backend-transitportal/internal/trip"
)

const defaultTimeout = 10 * time.Second

type Metrics interface {
	GatewayObserve(op string, d time.Duration, err error)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	timeout time.Duration
	metrics Metrics
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option   { return func(c *Client) { c.timeout = d } }
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithMetrics(m Metrics) Option         { return func(c *Client) { c.metrics = m } }
func WithToken(token string) Option        { return func(c *Client) { c.token = token } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c
}

// SetToken swaps the bearer token, e.g. after a refresh.
func (c *Client) SetToken(token string) { c.token = token }

func (c *Client) ListBuses(ctx context.Context, serviceType *domain.ServiceType) ([]domain.Bus, error) {
	path := "/buses/"
	if serviceType != nil {
		path += "?service_type=" + url.QueryEscape(string(*serviceType))
	}
	var buses []domain.Bus
	_, err := c.do(ctx, "list buses", http.MethodGet, path, nil, &buses)
	return buses, err
}

func (c *Client) Profile(ctx context.Context) (auth.Account, error) {
	var account auth.Account
	_, err := c.do(ctx, "profile", http.MethodGet, "/auth/me", nil, &account)
	return account, err
}

// Assign asks the server to bind driverID to busID. The server takes the
// driver identity from the token and refuses a mismatching driverID.
func (c *Client) Assign(ctx context.Context, driverID string, busID int64, driverType domain.ServiceType) (domain.Assignment, error) {
	body := map[string]any{"driver_id": driverID, "bus_id": busID, "driver_type": driverType}
	var a domain.Assignment
	_, err := c.do(ctx, "assign", http.MethodPost, "/assignments/", body, &a)
	return a, err
}

// GetCurrent returns nil when the server holds no active assignment.
func (c *Client) GetCurrent(ctx context.Context) (*domain.Assignment, error) {
	var a domain.Assignment
	status, err := c.do(ctx, "current assignment", http.MethodGet, "/assignments/current", nil, &a)
	if err != nil || status == http.StatusNoContent {
		return nil, err
	}
	return &a, nil
}

func (c *Client) End(ctx context.Context, assignmentID string) (domain.Assignment, error) {
	var a domain.Assignment
	_, err := c.do(ctx, "end assignment", http.MethodPost, "/assignments/"+url.PathEscape(assignmentID)+"/end", nil, &a)
	return a, err
}

func (c *Client) ReportLocation(ctx context.Context, tripID string, p domain.Position) error {
	body := tracking.Point{
		Lat:        p.Lat,
		Lng:        p.Lng,
		SpeedMps:   p.SpeedMps,
		AccuracyM:  p.Accuracy,
		RecordedAt: p.Time(),
	}
	_, err := c.do(ctx, "report location", http.MethodPost, "/tracking/trips/"+url.PathEscape(tripID)+"/points", body, nil)
	return err
}

func (c *Client) StartTrip(ctx context.Context, busID int64) (trip.Trip, error) {
	var t trip.Trip
	_, err := c.do(ctx, "start trip", http.MethodPost, "/trips/", trip.StartRequest{BusID: busID}, &t)
	return t, err
}

func (c *Client) EndTrip(ctx context.Context, tripID string) (trip.Trip, error) {
	var t trip.Trip
	_, err := c.do(ctx, "end trip", http.MethodPost, "/trips/"+url.PathEscape(tripID)+"/end", nil, &t)
	return t, err
}

func (c *Client) ListTrips(ctx context.Context, busID int64) ([]trip.Trip, error) {
	var trips []trip.Trip
	_, err := c.do(ctx, "list trips", http.MethodGet, "/trips/?bus_id="+strconv.FormatInt(busID, 10), nil, &trips)
	return trips, err
}

func (c *Client) CreateIncident(ctx context.Context, in incident.Incident) (incident.Incident, error) {
	var out incident.Incident
	_, err := c.do(ctx, "create incident", http.MethodPost, "/incidents/", in, &out)
	return out, err
}

func (c *Client) ScanTicket(ctx context.Context, busID int64, code string) (ticket.Ticket, error) {
	var t ticket.Ticket
	_, err := c.do(ctx, "scan ticket", http.MethodPost, "/tickets/scan", ticket.ScanRequest{BusID: busID, Code: code}, &t)
	return t, err
}

// do runs one request under the client timeout and maps failures onto the
// apperr taxonomy. It returns the response status on success.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) (status int, err error) {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.GatewayObserve(op, time.Since(start), err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, apperr.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, apperr.NetworkError{Op: op, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, apperr.FromStatus(op, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out != nil && resp.StatusCode != http.StatusNoContent && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, apperr.NetworkError{Op: op, Status: resp.StatusCode, Err: errors.Join(errors.New("decode response"), err)}
		}
	}
	return resp.StatusCode, nil
}
