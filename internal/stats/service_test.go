package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/apperr"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"
	"stall-backend/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	totals    map[string]any
	breakdown []map[string]any
	penalties map[string]any
	err       error

	calls   int
	periods []*storage.Period
}

func (f *fakeStore) PaymentTotals(_ context.Context, _ access.Scope, p *storage.Period) (map[string]any, error) {
	f.calls++
	f.periods = append(f.periods, p)
	return f.totals, f.err
}

func (f *fakeStore) PaymentBreakdown(_ context.Context, _ access.Scope, p *storage.Period) ([]map[string]any, error) {
	f.calls++
	return f.breakdown, f.err
}

func (f *fakeStore) PenaltyTotals(_ context.Context, _ access.Scope, p *storage.Period) (map[string]any, error) {
	f.calls++
	f.periods = append(f.periods, p)
	return f.penalties, f.err
}

func TestToDecimal(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, "0"},
		{"", "0"},
		{"abc", "0"},
		{[]byte("12.345"), "12.35"},
		{"1500", "1500"},
		{int64(7), "7"},
		{int(3), "3"},
		{float64(0.1) + float64(0.2), "0.3"},
		{decimal.RequireFromString("2.499"), "2.5"},
		{struct{}{}, "0"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ToDecimal(tc.in).String(), "%#v", tc.in)
	}
}

func TestGetStats_ZeroPaymentsAverageIsZero(t *testing.T) {
	store := &fakeStore{
		totals: map[string]any{
			storage.ColTotalPayments: int64(0),
			storage.ColTotalAmount:   nil,
		},
	}
	sum, err := NewService(store).GetStats(context.Background(), access.Unrestricted(), "")
	require.NoError(t, err)
	assert.Zero(t, sum.TotalPayments)
	assert.Zero(t, sum.AveragePayment)
	assert.Zero(t, sum.TotalAmount)
}

func TestGetStats_CoercesDriverValues(t *testing.T) {
	store := &fakeStore{
		totals: map[string]any{
			storage.ColTotalPayments:     []byte("3"),
			storage.ColTotalAmount:       "3000.50",
			storage.ColOnlinePayments:    int64(1),
			storage.ColOnlineAmount:      "garbage",
			storage.ColOnsitePayments:    "2",
			storage.ColOnsiteAmount:      float64(1500.25),
			storage.ColCompletedPayments: int64(3),
			storage.ColPendingPayments:   "2",
			storage.ColDeclinedPayments:  nil,
		},
		breakdown: []map[string]any{
			{storage.ColMethod: []byte("gcash"), storage.ColCount: int64(1), storage.ColAmount: "1500.25"},
			{storage.ColMethod: "onsite", storage.ColCount: []byte("2"), storage.ColAmount: []byte("1500.25")},
			{storage.ColMethod: "cheque", storage.ColCount: int64(9), storage.ColAmount: "1"},
		},
	}

	sum, err := NewService(store).GetStats(context.Background(), access.Branches(1, 2), "")
	require.NoError(t, err)

	assert.Equal(t, int64(3), sum.TotalPayments)
	assert.Equal(t, 3000.5, sum.TotalAmount)
	assert.Equal(t, 1000.17, sum.AveragePayment)
	assert.Zero(t, sum.OnlineAmount)
	assert.Equal(t, int64(2), sum.OnsitePayments)
	assert.Equal(t, 1500.25, sum.OnsiteAmount)
	assert.Equal(t, int64(2), sum.PendingPayments)
	assert.Zero(t, sum.DeclinedPayments)

	require.Len(t, sum.Breakdown, len(models.BreakdownMethods))
	assert.Equal(t, MethodTotals{Count: 1, Amount: 1500.25}, sum.Breakdown[models.MethodGCash])
	assert.Equal(t, MethodTotals{Count: 2, Amount: 1500.25}, sum.Breakdown[models.MethodOnsite])
	assert.Equal(t, MethodTotals{}, sum.Breakdown[models.MethodBankTransfer])
}

func TestGetStats_NoAccessSkipsStore(t *testing.T) {
	store := &fakeStore{}
	sum, err := NewService(store).GetStats(context.Background(), access.NoAccess(), "2024-03")
	require.NoError(t, err)

	assert.Zero(t, store.calls)
	assert.Zero(t, sum.TotalPayments)
	assert.Equal(t, "2024-03", sum.Month)
	assert.Len(t, sum.Breakdown, len(models.BreakdownMethods))

	pen, err := NewService(store).GetPenaltyStats(context.Background(), access.NoAccess(), "")
	require.NoError(t, err)
	assert.Zero(t, store.calls)
	assert.Zero(t, pen.OutstandingCount)
}

func TestGetStats_MonthBecomesPeriod(t *testing.T) {
	store := &fakeStore{totals: map[string]any{}}
	svc := NewService(store)

	_, err := svc.GetStats(context.Background(), access.Unrestricted(), "2024-13")
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"month"}, ve.Fields)

	_, err = svc.GetStats(context.Background(), access.Unrestricted(), "2024-03")
	require.NoError(t, err)
	require.NotNil(t, store.periods[0])
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), store.periods[0].Start)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), store.periods[0].End)

	_, err = svc.GetStats(context.Background(), access.Unrestricted(), "")
	require.NoError(t, err)
	assert.Nil(t, store.periods[1])
}

func TestGetStats_StoreErrorIsPersistence(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	_, err := NewService(store).GetStats(context.Background(), access.Unrestricted(), "")
	var pe *apperr.PersistenceError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, 500, apperr.StatusCode(err))
}

func TestGetStats_AgainstMemoryStore(t *testing.T) {
	mem := memory.New()
	mem.AddBranch(models.Branch{ID: 1, Name: "North"})
	mem.AddBranch(models.Branch{ID: 2, Name: "South"})
	mem.AddStallholder(models.Stallholder{ID: 10, BranchID: 1, FullName: "A"})
	mem.AddStallholder(models.Stallholder{ID: 11, BranchID: 2, FullName: "B"})

	march := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	mem.AddPayment(models.Payment{StallholderID: 10, Amount: 1000, PaymentDate: march, Method: models.MethodOnsite, ReferenceNumber: "1", Status: models.PaymentCompleted})
	mem.AddPayment(models.Payment{StallholderID: 10, Amount: 500, PaymentDate: march, Method: models.MethodGCash, ReferenceNumber: "2", Status: models.PaymentCompleted})
	mem.AddPayment(models.Payment{StallholderID: 10, Amount: 700, PaymentDate: march, Method: models.MethodMaya, ReferenceNumber: "3", Status: models.PaymentPending})
	mem.AddPayment(models.Payment{StallholderID: 10, Amount: 300, PaymentDate: march.AddDate(0, 1, 0), Method: models.MethodOnsite, ReferenceNumber: "4", Status: models.PaymentCompleted})
	mem.AddPayment(models.Payment{StallholderID: 11, Amount: 9000, PaymentDate: march, Method: models.MethodOnsite, ReferenceNumber: "5", Status: models.PaymentCompleted})

	svc := NewService(mem)
	sum, err := svc.GetStats(context.Background(), access.Branches(1), "2024-03")
	require.NoError(t, err)

	assert.Equal(t, int64(2), sum.TotalPayments)
	assert.Equal(t, 1500.0, sum.TotalAmount)
	assert.Equal(t, 750.0, sum.AveragePayment)
	assert.Equal(t, int64(1), sum.OnlinePayments)
	assert.Equal(t, int64(1), sum.PendingPayments)
	assert.Equal(t, MethodTotals{Count: 1, Amount: 500}, sum.Breakdown[models.MethodGCash])
	assert.Equal(t, MethodTotals{}, sum.Breakdown[models.MethodMaya], "pending payments are not in the breakdown")

	all, err := svc.GetStats(context.Background(), access.Unrestricted(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(4), all.TotalPayments)
	assert.Equal(t, 10800.0, all.TotalAmount)
}

func TestGetPenaltyStats(t *testing.T) {
	mem := memory.New()
	mem.AddBranch(models.Branch{ID: 1, Name: "North"})
	mem.AddStallholder(models.Stallholder{ID: 10, BranchID: 1, FullName: "A"})
	mem.AddViolation(models.Violation{ID: 1, StallholderID: 10, BranchID: 1, ViolationType: "x", PenaltyAmount: 200})
	mem.AddViolation(models.Violation{ID: 2, StallholderID: 10, BranchID: 1, ViolationType: "y", PenaltyAmount: 300})

	_, err := mem.SettleViolation(context.Background(), access.Unrestricted(), 1, models.PenaltyPayment{
		AmountPaid: 150, ReferenceNumber: "P-1", PaidAt: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	svc := NewService(mem)
	sum, err := svc.GetPenaltyStats(context.Background(), access.Branches(1), "2024-03")
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.SettledCount)
	assert.Equal(t, 150.0, sum.SettledAmount)
	assert.Equal(t, int64(1), sum.OutstandingCount)
	assert.Equal(t, 300.0, sum.OutstandingAmount)

	feb, err := svc.GetPenaltyStats(context.Background(), access.Branches(1), "2024-02")
	require.NoError(t, err)
	assert.Zero(t, feb.SettledCount)
	assert.Equal(t, int64(1), feb.OutstandingCount, "outstanding ignores the month")
}
