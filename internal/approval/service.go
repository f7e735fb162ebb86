// Package approval decides pending online payments.
package approval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/apperr"
	"stall-backend/internal/audit"
	"stall-backend/internal/fieldcrypt"
	"stall-backend/internal/ledger"
	"stall-backend/internal/metrics"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"
)

const DefaultDeclineReason = "No reason provided"

type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Store is what the workflow needs: the decision itself plus the pending
// listing shared with the ledger.
type Store interface {
	storage.ApprovalStore
	ListPayments(ctx context.Context, scope access.Scope, f storage.PaymentFilter) ([]storage.PaymentRow, error)
}

type Service struct {
	store    Store
	audit    storage.AuditStore
	revealer fieldcrypt.Revealer
	now      func() time.Time
}

func NewService(store Store, auditStore storage.AuditStore, revealer fieldcrypt.Revealer) *Service {
	if revealer == nil {
		revealer = fieldcrypt.Passthrough{}
	}
	return &Service{store: store, audit: auditStore, revealer: revealer, now: time.Now}
}

func (s *Service) decide(ctx context.Context, id access.Identity, scope access.Scope, paymentID uint, to models.PaymentState, reason string) (*Outcome, error) {
	decision := "approve"
	action := models.AuditActionApprove
	if to == models.PaymentDeclined {
		decision = "decline"
		action = models.AuditActionDecline
	}

	if paymentID == 0 {
		metrics.ObserveApproval(decision, "invalid")
		return nil, apperr.Invalid("", "paymentId")
	}
	// NoAccess never reaches the store
	if scope.Kind() == access.KindNoAccess {
		metrics.ObserveApproval(decision, "not_found")
		return nil, apperr.NotFound("pending payment", paymentID)
	}

	decided, err := s.store.DecidePayment(ctx, scope, storage.PaymentDecision{
		PaymentID: paymentID,
		To:        to,
		Actor:     id.DisplayName,
		At:        s.now(),
		Reason:    reason,
	})
	if errors.Is(err, storage.ErrNotFound) {
		metrics.ObserveApproval(decision, "not_found")
		return nil, apperr.NotFound("pending payment", paymentID)
	}
	if err != nil {
		metrics.ObserveApproval(decision, "error")
		return nil, apperr.Persistence(decision+" payment", err)
	}
	metrics.ObserveApproval(decision, "ok")

	desc := fmt.Sprintf("Payment %s (%.2f) approved", decided.Reference, decided.Amount)
	if to == models.PaymentDeclined {
		desc = fmt.Sprintf("Payment %s (%.2f) declined: %s", decided.Reference, decided.Amount, reason)
	}
	branchID := decided.BranchID
	audit.Record(ctx, s.audit, audit.LogOptions{
		BranchID:    &branchID,
		UserID:      id.UserID,
		UserName:    id.DisplayName,
		EntityType:  audit.EntityPayment,
		EntityID:    decided.ID,
		Action:      action,
		Description: desc,
		Before:      map[string]any{"status": models.PaymentPending},
		After:       map[string]any{"status": to},
	})

	msg := "Payment approved"
	if to == models.PaymentDeclined {
		msg = "Payment declined"
	}
	return &Outcome{Success: true, Message: msg}, nil
}

// Approve completes a pending payment and marks its stallholder paid.
func (s *Service) Approve(ctx context.Context, id access.Identity, scope access.Scope, paymentID uint) (*Outcome, error) {
	return s.decide(ctx, id, scope, paymentID, models.PaymentCompleted, "")
}

func (s *Service) Decline(ctx context.Context, id access.Identity, scope access.Scope, paymentID uint, reason string) (*Outcome, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultDeclineReason
	}
	if !models.FitsColumn(reason, models.DeclineReasonSize) {
		metrics.ObserveApproval("decline", "invalid")
		return nil, apperr.Invalid("", "reason")
	}
	return s.decide(ctx, id, scope, paymentID, models.PaymentDeclined, reason)
}

// ListPending returns pending online payments for review, newest first.
func (s *Service) ListPending(ctx context.Context, scope access.Scope, limit, offset int) ([]ledger.PaymentView, error) {
	v := &apperr.Validation{}
	f := ledger.NormalizeListInput(ledger.ListPaymentsInput{Limit: limit, Offset: offset}, v)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if scope.Kind() == access.KindNoAccess {
		return []ledger.PaymentView{}, nil
	}

	f.Category = models.CategoryOnline
	f.Status = models.PaymentPending
	rows, err := s.store.ListPayments(ctx, scope, f)
	if err != nil {
		return nil, apperr.Persistence("list pending payments", err)
	}
	return ledger.NewPaymentViews(rows, s.revealer), nil
}
