package approval

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
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

func newApprovalApp(svc *Service, scope access.Scope) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.ErrorHandler(true, nil)})
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(auth.CtxUserIDKey, reviewer.UserID)
		c.Locals(auth.CtxUserRoleKey, reviewer.Role)
		c.Locals(auth.CtxUserNameKey, reviewer.DisplayName)
		c.Locals(auth.CtxScopeKey, scope)
		return c.Next()
	})
	app.Get("/payments/pending", ListPendingHandler(svc))
	app.Post("/payments/:id/approve", ApproveHandler(svc))
	app.Post("/payments/:id/decline", DeclineHandler(svc))
	return app
}

func post(t *testing.T, app *fiber.App, path string, body io.Reader, contentType string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestApproveHandler(t *testing.T) {
	f := newFixture(t)
	app := newApprovalApp(f.svc, access.Branches(1))

	status, body := post(t, app, "/payments/999/approve", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, false, body["success"])

	status, _ = post(t, app, "/payments/abc/approve", nil, "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = post(t, app, "/payments/"+itoa(f.pending.ID)+"/approve", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Payment approved", body["message"])
}

func TestDeclineHandler_BodyIsOptional(t *testing.T) {
	cases := []struct {
		name        string
		body        io.Reader
		contentType string
	}{
		{"absent", nil, ""},
		{"empty object", strings.NewReader(`{}`), "application/json"},
		{"blank reason", strings.NewReader(`{"reason":"  "}`), "application/json"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			app := newApprovalApp(f.svc, access.Unrestricted())

			status, body := post(t, app, "/payments/"+itoa(f.pending.ID)+"/decline", tc.body, tc.contentType)
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, "Payment declined", body["message"])

			p, _ := f.store.Payment(f.pending.ID)
			assert.Equal(t, models.PaymentDeclined, p.Status)
			assert.Equal(t, DefaultDeclineReason, p.DeclineReason)
		})
	}
}

func TestDeclineHandler_ReasonAndMalformedBody(t *testing.T) {
	f := newFixture(t)
	app := newApprovalApp(f.svc, access.Unrestricted())
	path := "/payments/" + itoa(f.pending.ID) + "/decline"

	status, _ := post(t, app, path, strings.NewReader(`{"reason":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = post(t, app, path, strings.NewReader(`{"reason":"blurry receipt"}`), "application/json")
	require.Equal(t, http.StatusOK, status)
	p, _ := f.store.Payment(f.pending.ID)
	assert.Equal(t, "blurry receipt", p.DeclineReason)
}

func TestListPendingHandler(t *testing.T) {
	f := newFixture(t)
	app := newApprovalApp(f.svc, access.Branches(1))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/payments/pending", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 1.0, body["count"])
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
