package approval

import (
	"stall-backend/internal/apperr"
	"stall-backend/internal/auth"
	"stall-backend/internal/ledger"

	"github.com/gofiber/fiber/v2"
)

type DeclineRequest struct {
	Reason string `json:"reason"`
}

func paymentID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("", "paymentId")
	}
	return uint(id), nil
}

// POST /api/payments/:id/approve
func ApproveHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.IdentityFrom(c)
		if err != nil {
			return err
		}
		pid, err := paymentID(c)
		if err != nil {
			return err
		}

		out, err := svc.Approve(c.UserContext(), id, auth.ScopeFrom(c), pid)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// POST /api/payments/:id/decline
func DeclineHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.IdentityFrom(c)
		if err != nil {
			return err
		}
		pid, err := paymentID(c)
		if err != nil {
			return err
		}

		// the body is optional
		var body DeclineRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return apperr.Invalid("invalid request body")
			}
		}

		out, err := svc.Decline(c.UserContext(), id, auth.ScopeFrom(c), pid, body.Reason)
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// GET /api/payments/pending?limit=50&offset=0
func ListPendingHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := ledger.QueryInt(c, "limit")
		if err != nil {
			return err
		}
		offset, err := ledger.QueryInt(c, "offset")
		if err != nil {
			return err
		}

		views, err := svc.ListPending(c.UserContext(), auth.ScopeFrom(c), limit, offset)
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
