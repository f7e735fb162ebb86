package logging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RequestID(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(nil))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(CtxRequestIDKey).(string))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	_, perr := uuid.Parse(resp.Header.Get(RequestIDHeader))
	assert.NoError(t, perr)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "abc-123", resp.Header.Get(RequestIDHeader))
}

func TestMiddleware_PassesErrorThrough(t *testing.T) {
	var seen error
	app := fiber.New()
	app.Use(Middleware(func(err error) int {
		seen = err
		return fiber.StatusConflict
	}))
	app.Get("/", func(*fiber.Ctx) error { return fiber.ErrConflict })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, fiber.ErrConflict, seen)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", ParseLevel("debug").String())
	assert.Equal(t, "INFO", ParseLevel("nonsense").String())
}

func TestDeadline_BoundsUserContext(t *testing.T) {
	app := fiber.New()
	app.Use(Deadline(20 * time.Millisecond))
	app.Get("/", func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		if _, ok := ctx.Deadline(); !ok {
			return fiber.NewError(fiber.StatusInternalServerError, "no deadline")
		}
		<-ctx.Done()
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fiber.NewError(fiber.StatusInternalServerError, "not a deadline")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
