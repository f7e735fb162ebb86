package settlement

import (
	"strconv"

	"stall-backend/internal/apperr"
	"stall-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// GET /api/violations/unpaid?stallholderId=42
func ListUnpaidViolationsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var stallholderID uint
		if raw := c.Query("stallholderId"); raw != "" {
			n, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return apperr.Invalid("", "stallholderId")
			}
			stallholderID = uint(n)
		}

		views, err := svc.ListUnpaidViolations(c.UserContext(), auth.ScopeFrom(c), stallholderID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    views,
			"count":   len(views),
		})
	}
}

// POST /api/violations/:id/settle
func SettleViolationHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.IdentityFrom(c)
		if err != nil {
			return err
		}

		violationID, err := c.ParamsInt("id")
		if err != nil || violationID <= 0 {
			return apperr.Invalid("", "violationId")
		}

		var body SettleInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Invalid("invalid request body")
		}
		body.ViolationID = uint(violationID)

		res, err := svc.SettleViolation(c.UserContext(), id, auth.ScopeFrom(c), body)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Violation settled",
			"data":    res,
		})
	}
}
