package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	CtxRequestIDKey = "request_id"
)

// Middleware logs one line per request. It reuses an incoming request id
// or generates one, and echoes it back in the response header.
func Middleware(statusOf func(error) int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get(RequestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Locals(CtxRequestIDKey, reqID)
		c.Set(RequestIDHeader, reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil && statusOf != nil {
			status = statusOf(err)
		}

		attrs := []any{
			"request_id", reqID,
			"method", c.Method(),
			"path", c.Path(),
			"status", status,
			"duration", time.Since(start),
			"ip", c.IP(),
		}
		if uid := c.Locals("user_id"); uid != nil {
			attrs = append(attrs, "user_id", uid)
		}

		switch {
		case status >= 500:
			slog.ErrorContext(c.UserContext(), "request failed", append(attrs, "error", err)...)
		case status >= 400:
			slog.WarnContext(c.UserContext(), "request rejected", attrs...)
		default:
			slog.InfoContext(c.UserContext(), "request served", attrs...)
		}
		return err
	}
}

// Deadline bounds every request's UserContext. Store calls run with that
// context, so a slow query is cancelled and its transaction rolled back
// once the deadline passes.
func Deadline(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}
