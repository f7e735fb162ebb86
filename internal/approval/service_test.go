package approval

import (
	"context"
	"strings"
	"testing"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/apperr"
	"stall-backend/internal/fieldcrypt"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"
	"stall-backend/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reviewer = access.Identity{UserID: 3, Role: models.RoleBranchManager, DisplayName: "Ana Reyes"}

var decidedAt = time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)

// countingStore records how often the decision reaches the store.
type countingStore struct {
	*memory.Store
	decisions int
}

func (s *countingStore) DecidePayment(ctx context.Context, scope access.Scope, d storage.PaymentDecision) (*storage.DecidedPayment, error) {
	s.decisions++
	return s.Store.DecidePayment(ctx, scope, d)
}

type fixture struct {
	store   *countingStore
	svc     *Service
	pending models.Payment
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := memory.New()
	mem.AddBranch(models.Branch{ID: 1, Name: "North"})
	mem.AddBranch(models.Branch{ID: 2, Name: "South"})
	mem.AddStallholder(models.Stallholder{ID: 10, BranchID: 1, FullName: "Juan Dela Cruz"})
	mem.AddStallholder(models.Stallholder{ID: 11, BranchID: 2, FullName: "Liza Ramos"})
	pending := mem.AddPayment(models.Payment{
		StallholderID: 10, Amount: 1200, PaymentDate: decidedAt, Method: models.MethodGCash,
		ReferenceNumber: "GC-1", Status: models.PaymentPending,
	})
	mem.AddPayment(models.Payment{
		StallholderID: 11, Amount: 800, PaymentDate: decidedAt, Method: models.MethodMaya,
		ReferenceNumber: "MY-1", Status: models.PaymentPending,
	})
	mem.AddPayment(models.Payment{
		StallholderID: 10, Amount: 500, PaymentDate: decidedAt, Method: models.MethodOnsite,
		ReferenceNumber: "CASH-1", Status: models.PaymentCompleted,
	})

	store := &countingStore{Store: mem}
	svc := NewService(store, mem, fieldcrypt.Passthrough{})
	svc.now = func() time.Time { return decidedAt }
	return &fixture{store: store, svc: svc, pending: pending}
}

func TestApprove_MissingPaymentMutatesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Approve(context.Background(), reviewer, access.Unrestricted(), 999)
	var nf *apperr.NotFoundError
	require.ErrorAs(t, err, &nf)

	p, _ := f.store.Payment(f.pending.ID)
	assert.Equal(t, models.PaymentPending, p.Status)
	sh, _ := f.store.Stallholder(10)
	assert.Equal(t, models.PaymentStatusPending, sh.PaymentStatus)
	assert.Empty(t, f.store.AuditEntries())
}

func TestApprove_CompletesAndMarksStallholderPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Approve(ctx, reviewer, access.Branches(1), f.pending.ID)
	require.NoError(t, err)
	assert.Equal(t, &Outcome{Success: true, Message: "Payment approved"}, out)

	p, _ := f.store.Payment(f.pending.ID)
	assert.Equal(t, models.PaymentCompleted, p.Status)
	assert.Equal(t, "Ana Reyes", p.ApprovedBy)
	require.NotNil(t, p.ApprovedAt)
	assert.Equal(t, decidedAt, *p.ApprovedAt)

	sh, _ := f.store.Stallholder(10)
	assert.Equal(t, models.PaymentStatusPaid, sh.PaymentStatus)

	entries := f.store.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionApprove, entries[0].Action)

	// already decided
	_, err = f.svc.Approve(ctx, reviewer, access.Branches(1), f.pending.ID)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
	_, err = f.svc.Decline(ctx, reviewer, access.Branches(1), f.pending.ID, "late")
	assert.ErrorAs(t, err, &nf)
}

func TestDecline_DefaultReason(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Decline(context.Background(), reviewer, access.Unrestricted(), f.pending.ID, "   ")
	require.NoError(t, err)
	assert.Equal(t, "Payment declined", out.Message)

	p, _ := f.store.Payment(f.pending.ID)
	assert.Equal(t, models.PaymentDeclined, p.Status)
	assert.Equal(t, DefaultDeclineReason, p.DeclineReason)
	assert.Equal(t, "Ana Reyes", p.DeclinedBy)

	sh, _ := f.store.Stallholder(10)
	assert.Equal(t, models.PaymentStatusPending, sh.PaymentStatus, "declining leaves the stallholder untouched")
}

func TestDecide_OutOfScopeIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, reviewer, access.Branches(2), f.pending.ID)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)

	p, _ := f.store.Payment(f.pending.ID)
	assert.Equal(t, models.PaymentPending, p.Status)
}

func TestDecide_NoAccessSkipsStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Approve(ctx, reviewer, access.NoAccess(), f.pending.ID)
	var nf *apperr.NotFoundError
	assert.ErrorAs(t, err, &nf)
	_, err = f.svc.Decline(ctx, reviewer, access.NoAccess(), f.pending.ID, "")
	assert.ErrorAs(t, err, &nf)

	assert.Zero(t, f.store.decisions)
}

func TestListPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	all, err := f.svc.ListPending(ctx, access.Unrestricted(), 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	north, err := f.svc.ListPending(ctx, access.Branches(1), 0, 0)
	require.NoError(t, err)
	require.Len(t, north, 1)
	assert.Equal(t, "GC-1", north[0].ReferenceNumber)
	assert.Equal(t, "Juan Dela Cruz", north[0].StallholderName)

	none, err := f.svc.ListPending(ctx, access.NoAccess(), 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = f.svc.ListPending(ctx, access.Unrestricted(), 1000, 0)
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestDecline_ReasonTooLong(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Decline(context.Background(), reviewer, access.Unrestricted(), f.pending.ID, strings.Repeat("x", models.DeclineReasonSize+1))
	var ve *apperr.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"reason"}, ve.Fields)
	assert.Zero(t, f.store.decisions)

	p, _ := f.store.Payment(f.pending.ID)
	assert.Equal(t, models.PaymentPending, p.Status)
}
