package incident

import (
	"strconv"

	"backend-transitportal/internal/auth"
	"backend-transitportal/internal/shared/apperr"
	"backend-transitportal/internal/shared/validate"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, auth.RequireRole(auth.RoleDriver), func(c *fiber.Ctx) error {
		var req Incident
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		incident, err := svc.Create(c.Context(), auth.UserID(c), req)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(incident)
	})

	r.Get("/", authMiddleware, auth.RequireRole(auth.RoleAdmin, auth.RoleOwner, auth.RoleDriver), func(c *fiber.Ctx) error {
		busID, err := strconv.ParseInt(c.Query("bus_id"), 10, 64)
		if err != nil || busID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "bus_id required")
		}
		incidents, err := svc.ListByBus(c.Context(), busID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(incidents)
	})
}
