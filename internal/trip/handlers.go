package trip

import (
	"strconv"

	"backend-transitportal/internal/auth"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	driverOnly := auth.RequireRole(auth.RoleDriver)

	r.Post("/", authMiddleware, driverOnly, func(c *fiber.Ctx) error {
		var req StartRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		trip, err := svc.Start(c.Context(), auth.UserID(c), req.BusID)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(trip)
	})

	r.Post("/:id/end", authMiddleware, driverOnly, func(c *fiber.Ctx) error {
		trip, err := svc.End(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(trip)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		trip, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(trip)
	})

	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		busID, err := strconv.ParseInt(c.Query("bus_id"), 10, 64)
		if err != nil || busID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "bus_id required")
		}
		trips, err := svc.ListByBus(c.Context(), busID, c.QueryInt("limit", 20))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(trips)
	})
}
