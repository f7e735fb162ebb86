package ledger

import (
	"strconv"

	"stall-backend/internal/apperr"
	"stall-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
)

// QueryInt reads an optional integer query parameter.
func QueryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid("invalid query parameter", key)
	}
	return n, nil
}

// POST /api/payments/onsite
func RecordOnsitePaymentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.IdentityFrom(c)
		if err != nil {
			return err
		}

		var body RecordPaymentInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Invalid("invalid request body")
		}

		receipt, err := svc.RecordOnsitePayment(c.UserContext(), id, auth.ScopeFrom(c), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Payment recorded",
			"data":    receipt,
		})
	}
}

// POST /api/payments/online
func SubmitOnlinePaymentHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := auth.IdentityFrom(c)
		if err != nil {
			return err
		}

		var body OnlinePaymentInput
		if err := c.BodyParser(&body); err != nil {
			return apperr.Invalid("invalid request body")
		}

		receipt, err := svc.SubmitOnlinePayment(c.UserContext(), id, auth.ScopeFrom(c), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Payment submitted for approval",
			"data":    receipt,
		})
	}
}

// GET /api/payments?method=onsite&limit=50&offset=0&search=A-12
func ListPaymentsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := QueryInt(c, "limit")
		if err != nil {
			return err
		}
		offset, err := QueryInt(c, "offset")
		if err != nil {
			return err
		}

		views, err := svc.ListPayments(c.UserContext(), auth.ScopeFrom(c), ListPaymentsInput{
			Method: c.Query("method"),
			Limit:  limit,
			Offset: offset,
			Search: c.Query("search"),
		})
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
