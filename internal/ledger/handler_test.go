package ledger

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stall-backend/internal/access"
	"stall-backend/internal/apperr"
	"stall-backend/internal/auth"
	"stall-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(svc *Service, scope access.Scope) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler(true, nil)})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, uint(5))
		c.Locals(auth.CtxUserRoleKey, models.RoleEmployee)
		c.Locals(auth.CtxUserNameKey, "Rosa Cruz")
		c.Locals(auth.CtxScopeKey, scope)
		return c.Next()
	})
	app.Post("/payments/onsite", RecordOnsitePaymentHandler(svc))
	app.Get("/payments", ListPaymentsHandler(svc))
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return body
}

func TestRecordOnsitePaymentHandler(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f.svc, access.Branches(3))

	req := httptest.NewRequest(http.MethodPost, "/payments/onsite",
		strings.NewReader(`{"stallholderId":42,"amount":1500,"paymentDate":"2024-03-01","referenceNumber":"REF001"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode(t, resp)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1500.0, data["amountPaid"])
	assert.Equal(t, "REF001", data["receiptNumber"])
}

func TestRecordOnsitePaymentHandler_ValidationBody(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f.svc, access.Unrestricted())

	req := httptest.NewRequest(http.MethodPost, "/payments/onsite", strings.NewReader(`{"stallholderId":42}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, []any{"amount", "paymentDate", "referenceNumber"}, body["fields"])
}

func TestListPaymentsHandler(t *testing.T) {
	f := newFixture(t)
	seedPayments(f)
	app := newTestApp(f.svc, access.Branches(9))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/payments?method=onsite&limit=10", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, 2.0, body["count"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/payments?method=onsite&limit=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/payments", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
