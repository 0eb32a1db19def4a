package ticket

import (
	"strconv"

	"backend-transitportal/internal/auth"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	driverOnly := auth.RequireRole(auth.RoleDriver)

	r.Post("/scan", authMiddleware, driverOnly, func(c *fiber.Ctx) error {
		var req ScanRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		t, err := svc.Scan(c.Context(), auth.UserID(c), req.BusID, req.Code)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(t)
	})

	r.Get("/", authMiddleware, driverOnly, func(c *fiber.Ctx) error {
		busID, err := strconv.ParseInt(c.Query("bus_id"), 10, 64)
		if err != nil || busID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "bus_id required")
		}
		tickets, err := svc.Manifest(c.Context(), busID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(tickets)
	})
}
