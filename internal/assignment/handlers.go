package assignment

import (
	"backend-transitportal/internal/auth"
	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

type assignRequest struct {
	DriverID   string             `json:"driver_id"`
	BusID      int64              `json:"bus_id" validate:"required,gt=0"`
	DriverType domain.ServiceType `json:"driver_type" validate:"required,service_type"`
}

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	driverOnly := auth.RequireRole(auth.RoleDriver)

	r.Post("/", authMiddleware, driverOnly, func(c *fiber.Ctx) error {
		var req assignRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.DriverID != "" && req.DriverID != auth.UserID(c) {
			return fiber.NewError(fiber.StatusForbidden, "cannot assign another driver")
		}
		a, err := svc.Assign(c.Context(), auth.UserID(c), req.BusID, req.DriverType)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(a)
	})

	r.Get("/current", authMiddleware, driverOnly, func(c *fiber.Ctx) error {
		a, err := svc.Current(c.Context(), auth.UserID(c))
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		if a == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.JSON(a)
	})

	r.Post("/:id/end", authMiddleware, driverOnly, func(c *fiber.Ctx) error {
		a, err := svc.End(c.Context(), auth.UserID(c), c.Params("id"))
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(a)
	})
}
