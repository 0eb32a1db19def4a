package incident

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func asDriver(c *fiber.Ctx) error {
	c.Locals("user_id", "driver-1")
	c.Locals("role", "driver")
	return c.Next()
}

func postIncident(app *fiber.App, body string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, "/incidents/", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	return resp
}

func TestIncidentHandlers(t *testing.T) {
	mock := newMock(t)
	app := fiber.New()
	RegisterRoutes(app.Group("/incidents"), NewService(mock), asDriver)

	mock.ExpectQuery(`SELECT id FROM bus_assignments`).
		WithArgs("driver-1", int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("assign-1"))
	mock.ExpectQuery(`INSERT INTO incidents`).
		WithArgs(pgxmock.AnyArg(), "driver-1", int64(2), "assign-1", "delay", "", (*float64)(nil), (*float64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	if resp := postIncident(app, `{"bus_id":2,"category":"delay"}`); resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d", resp.StatusCode)
	}

	mock.ExpectQuery(`SELECT id FROM bus_assignments`).
		WithArgs("driver-1", int64(5)).
		WillReturnError(pgx.ErrNoRows)
	if resp := postIncident(app, `{"bus_id":5,"category":"delay"}`); resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected precondition failed, got %d", resp.StatusCode)
	}

	mock.ExpectQuery(`FROM incidents WHERE bus_id=\$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows(incidentCols))
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/incidents/?bus_id=2", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list status: %v", err)
	}
}

func TestIncidentHandlersValidation(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/incidents"), NewService(nil), asDriver)

	for _, body := range []string{`{"category":"delay"}`, `{"bus_id":2,"category":"fire drill"}`, `{`} {
		if resp := postIncident(app, body); resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected bad request for %s, got %d", body, resp.StatusCode)
		}
	}

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/incidents/", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request without bus_id")
	}
}
