package ledger

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/fieldcrypt"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"
	"stall-backend/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func seedOnsite(f *fixture, n int, stallholderID uint) {
	for i := 0; i < n; i++ {
		f.store.AddPayment(models.Payment{
			StallholderID:   stallholderID,
			Amount:          100,
			PaymentDate:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			PaymentTime:     "09:00:00",
			PaymentForMonth: "2024-03",
			PaymentType:     models.DefaultPaymentType,
			Method:          models.MethodOnsite,
			ReferenceNumber: fmt.Sprintf("EXP-%d-%d", stallholderID, i),
			Status:          models.PaymentCompleted,
		})
	}
}

func TestExportPayments_PagesPastListLimit(t *testing.T) {
	f := newFixture(t)
	seedOnsite(f, MaxListLimit+5, 42)
	seedOnsite(f, 3, 43)

	category, views, err := f.svc.ExportPayments(context.Background(), access.Branches(3), ListPaymentsInput{Method: "onsite"})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOnsite, category)
	assert.Len(t, views, MaxListLimit+5)
	for _, v := range views {
		assert.Equal(t, uint(3), v.BranchID)
	}
}

func TestExportPayments_NoAccessIsEmpty(t *testing.T) {
	f := newFixture(t)
	seedOnsite(f, 2, 42)

	_, views, err := f.svc.ExportPayments(context.Background(), access.NoAccess(), ListPaymentsInput{Method: "onsite"})
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.Zero(t, f.store.Queries)
}

// insertingStore records a new payment right after the first page is read.
type insertingStore struct {
	*memory.Store
	calls int
}

func (s *insertingStore) ListPayments(ctx context.Context, scope access.Scope, f storage.PaymentFilter) ([]storage.PaymentRow, error) {
	rows, err := s.Store.ListPayments(ctx, scope, f)
	s.calls++
	if s.calls == 1 {
		s.AddPayment(models.Payment{
			StallholderID:   42,
			Amount:          100,
			PaymentDate:     time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			Method:          models.MethodOnsite,
			ReferenceNumber: "EXP-LATE",
			Status:          models.PaymentCompleted,
		})
	}
	return rows, err
}

func TestExportPayments_InsertDuringExportDoesNotShiftPages(t *testing.T) {
	f := newFixture(t)
	seedOnsite(f, MaxListLimit+5, 42)
	store := &insertingStore{Store: f.store}
	svc := NewService(store, f.store, fieldcrypt.Passthrough{})

	_, views, err := svc.ExportPayments(context.Background(), access.Unrestricted(), ListPaymentsInput{Method: "onsite"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.calls)
	require.Len(t, views, MaxListLimit+5)

	seen := map[uint]bool{}
	for i, v := range views {
		assert.False(t, seen[v.ID], "payment %d exported twice", v.ID)
		seen[v.ID] = true
		if i > 0 {
			assert.Less(t, v.ID, views[i-1].ID)
		}
		assert.NotEqual(t, "EXP-LATE", v.ReferenceNumber)
	}
}

func TestWritePaymentsXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePaymentsXLSX(&buf, []PaymentView{{
		ID:              7,
		BranchName:      "Public Market North",
		StallholderName: "Juan Dela Cruz",
		Amount:          1500,
		PaymentMethod:   models.MethodOnsite,
		ReferenceNumber: "REF001",
		Status:          models.PaymentCompleted,
	}}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Reference", rows[0][10])
	assert.Equal(t, "Juan Dela Cruz", rows[1][3])
	assert.Equal(t, "1500", rows[1][5])
	assert.Equal(t, "REF001", rows[1][10])
}

func TestExportPaymentsHandler(t *testing.T) {
	f := newFixture(t)
	seedOnsite(f, 2, 42)
	app := newTestApp(f.svc, access.Unrestricted())
	app.Get("/payments/export", ExportPaymentsHandler(f.svc))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/payments/export?method=onsite", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "payments-onsite.xlsx")

	wb, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows(exportSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestExportPaymentsHandler_FilenameUsesNormalizedCategory(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f.svc, access.Unrestricted())
	app.Get("/payments/export", ExportPaymentsHandler(f.svc))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/payments/export?method=%20ONLINE%0D%0A", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename="payments-online.xlsx"`, resp.Header.Get("Content-Disposition"))
}

func TestExportPaymentsHandler_BadMethod(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f.svc, access.Unrestricted())
	app.Get("/payments/export", ExportPaymentsHandler(f.svc))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/payments/export?method=cash", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
