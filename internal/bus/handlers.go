package bus

import (
	"strconv"

	"backend-transitportal/internal/domain"
	"backend-transitportal/internal/shared/apperr"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		var filter *domain.ServiceType
		if raw := c.Query("service_type"); raw != "" {
			t, err := domain.ParseServiceType(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			filter = &t
		}
		buses, err := svc.List(c.Context(), filter)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(buses)
	})

	r.Get("/:id", authMiddleware, func(c *fiber.Ctx) error {
		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid bus id")
		}
		b, err := svc.Get(c.Context(), id)
		if err != nil {
			return fiber.NewError(apperr.Status(err), err.Error())
		}
		return c.JSON(b)
	})
}
