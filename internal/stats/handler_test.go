package stats

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/apperr"
	"stall-backend/internal/auth"
	"stall-backend/internal/models"
	"stall-backend/internal/storage/memory"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStatsApp(svc *Service, scope access.Scope) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler(true, nil)})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxScopeKey, scope)
		return c.Next()
	})
	app.Get("/payments/stats", PaymentStatsHandler(svc))
	app.Get("/violations/stats", PenaltyStatsHandler(svc))
	return app
}

func getJSON(t *testing.T, app *fiber.App, path string) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body
}

func TestPaymentStatsHandler(t *testing.T) {
	mem := memory.New()
	mem.AddBranch(models.Branch{ID: 1, Name: "North"})
	mem.AddStallholder(models.Stallholder{ID: 10, BranchID: 1, FullName: "A"})
	march := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	mem.AddPayment(models.Payment{StallholderID: 10, Amount: 1000, PaymentDate: march, Method: models.MethodOnsite, ReferenceNumber: "1", Status: models.PaymentCompleted})
	mem.AddPayment(models.Payment{StallholderID: 10, Amount: 500, PaymentDate: march, Method: models.MethodGCash, ReferenceNumber: "2", Status: models.PaymentCompleted})
	app := newStatsApp(NewService(mem), access.Branches(1))

	status, body := getJSON(t, app, "/payments/stats?month=2024-03")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 2.0, data["totalPayments"])
	assert.Equal(t, 750.0, data["averagePayment"])
	assert.Equal(t, "2024-03", data["month"])
	assert.Len(t, data["breakdown"], len(models.BreakdownMethods))
}

func TestPaymentStatsHandler_BadMonth(t *testing.T) {
	app := newStatsApp(NewService(memory.New()), access.Unrestricted())

	status, body := getJSON(t, app, "/payments/stats?month=March")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []any{"month"}, body["fields"])
}

func TestPenaltyStatsHandler_NoAccessIsZero(t *testing.T) {
	mem := memory.New()
	app := newStatsApp(NewService(mem), access.NoAccess())

	status, body := getJSON(t, app, "/violations/stats")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, 0.0, data["settledCount"])
	assert.Equal(t, 0.0, data["outstandingAmount"])
	assert.Zero(t, mem.Queries)
}
