package stats

import (
	"stall-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// GET /api/payments/stats?month=2024-03
func PaymentStatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := svc.GetStats(c.UserContext(), auth.ScopeFrom(c), c.Query("month"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": sum})
	}
}

// GET /api/violations/stats?month=2024-03
func PenaltyStatsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := svc.GetPenaltyStats(c.UserContext(), auth.ScopeFrom(c), c.Query("month"))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": sum})
	}
}
