// Package settlement closes violations: each one moves from unpaid to paid
// exactly once, together with its penalty payment record.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/apperr"
	"stall-backend/internal/audit"
	"stall-backend/internal/fieldcrypt"
	"stall-backend/internal/metrics"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"

	"github.com/shopspring/decimal"
)

const alreadyPaidMessage = "violation has already been paid"

type SettleInput struct {
	ViolationID      uint    `json:"violationId"`
	PaymentReference string  `json:"paymentReference"`
	PaidAmount       float64 `json:"paidAmount"`
	CollectedBy      string  `json:"collectedBy"`
	Notes            string  `json:"notes"`
}

type ViolationView struct {
	ID              uint                   `json:"id"`
	StallholderID   uint                   `json:"stallholderId"`
	StallholderName string                 `json:"stallholderName"`
	BranchID        uint                   `json:"branchId"`
	BranchName      string                 `json:"branchName"`
	StallID         *uint                  `json:"stallId"`
	StallNumber     string                 `json:"stallNumber"`
	ViolationType   string                 `json:"violationType"`
	Description     string                 `json:"description"`
	PenaltyAmount   float64                `json:"penaltyAmount"`
	Status          models.ViolationStatus `json:"status"`
	ReportedAt      time.Time              `json:"reportedAt"`
}

type Result struct {
	ViolationID      uint                   `json:"violationId"`
	ViolationType    string                 `json:"violationType"`
	Description      string                 `json:"description"`
	PenaltyAmount    float64                `json:"penaltyAmount"`
	StallholderID    uint                   `json:"stallholderId"`
	StallholderName  string                 `json:"stallholderName"`
	StallNumber      string                 `json:"stallNumber"`
	BranchID         uint                   `json:"branchId"`
	BranchName       string                 `json:"branchName"`
	PenaltyPaymentID uint                   `json:"penaltyPaymentId"`
	PaidAmount       float64                `json:"paidAmount"`
	PaymentReference string                 `json:"paymentReference"`
	CollectedBy      string                 `json:"collectedBy"`
	Notes            string                 `json:"notes"`
	PaidAt           time.Time              `json:"paidAt"`
	Status           models.ViolationStatus `json:"status"`
	// Discrepancy is paidAmount - penaltyAmount. Under and over payments are
	// accepted as collected.
	Discrepancy float64 `json:"discrepancy"`
}

type Service struct {
	store    storage.SettlementStore
	audit    storage.AuditStore
	revealer fieldcrypt.Revealer
	now      func() time.Time
}

func NewService(store storage.SettlementStore, auditStore storage.AuditStore, revealer fieldcrypt.Revealer) *Service {
	if revealer == nil {
		revealer = fieldcrypt.Passthrough{}
	}
	return &Service{store: store, audit: auditStore, revealer: revealer, now: time.Now}
}

func (s *Service) ListUnpaidViolations(ctx context.Context, scope access.Scope, stallholderID uint) ([]ViolationView, error) {
	if stallholderID == 0 {
		return nil, apperr.Invalid("", "stallholderId")
	}
	if scope.Kind() == access.KindNoAccess {
		return []ViolationView{}, nil
	}

	rows, err := s.store.ListUnpaidViolations(ctx, scope, stallholderID)
	if err != nil {
		return nil, apperr.Persistence("list unpaid violations", err)
	}

	out := make([]ViolationView, 0, len(rows))
	for _, r := range rows {
		v := ViolationView{
			ID:              r.ID,
			StallholderID:   r.StallholderID,
			StallholderName: s.revealer.Reveal(r.StallholderName),
			BranchID:        r.BranchID,
			BranchName:      r.BranchName,
			StallID:         r.StallID,
			StallNumber:     r.StallNumber,
			ViolationType:   r.ViolationType,
			Description:     r.Description,
			PenaltyAmount:   r.PenaltyAmount,
			Status:          r.Status,
			ReportedAt:      r.ReportedAt,
		}
		out = append(out, v)
	}
	return out, nil
}

func Discrepancy(paid, penalty float64) float64 {
	return decimal.NewFromFloat(paid).
		Sub(decimal.NewFromFloat(penalty)).
		Round(2).
		InexactFloat64()
}

func (s *Service) SettleViolation(ctx context.Context, id access.Identity, scope access.Scope, in SettleInput) (*Result, error) {
	v := &apperr.Validation{}
	v.Require(in.ViolationID > 0, "violationId")
	ref := strings.TrimSpace(in.PaymentReference)
	v.Require(ref != "" && models.FitsColumn(ref, models.ReferenceNumberSize), "paymentReference")
	v.Require(models.FitsAmount(in.PaidAmount), "paidAmount")
	v.Require(models.FitsColumn(strings.TrimSpace(in.CollectedBy), models.CollectedBySize), "collectedBy")
	v.Require(models.FitsColumn(strings.TrimSpace(in.Notes), models.NotesSize), "notes")
	if err := v.Err(); err != nil {
		metrics.ObserveSettlement("invalid")
		return nil, err
	}

	collectedBy := strings.TrimSpace(in.CollectedBy)
	if collectedBy == "" {
		collectedBy = id.DisplayName
	}

	settled, err := s.store.SettleViolation(ctx, scope, in.ViolationID, models.PenaltyPayment{
		AmountPaid:      in.PaidAmount,
		ReferenceNumber: ref,
		CollectedBy:     collectedBy,
		Notes:           strings.TrimSpace(in.Notes),
		PaidAt:          s.now(),
	})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		metrics.ObserveSettlement("not_found")
		return nil, apperr.NotFound("violation", in.ViolationID)
	case errors.Is(err, storage.ErrAlreadySettled):
		metrics.ObserveSettlement("already_paid")
		return nil, apperr.Conflict(alreadyPaidMessage)
	case errors.Is(err, storage.ErrDuplicateReference):
		metrics.ObserveSettlement("duplicate_reference")
		return nil, apperr.Conflict("payment reference is already in use")
	default:
		metrics.ObserveSettlement("error")
		return nil, apperr.Persistence("settle violation", err)
	}
	metrics.ObserveSettlement("settled")

	vr, pp := settled.Violation, settled.Payment
	res := &Result{
		ViolationID:      vr.ID,
		ViolationType:    vr.ViolationType,
		Description:      vr.Description,
		PenaltyAmount:    vr.PenaltyAmount,
		StallholderID:    vr.StallholderID,
		StallholderName:  vr.StallholderName,
		StallNumber:      vr.StallNumber,
		BranchID:         vr.BranchID,
		BranchName:       vr.BranchName,
		PenaltyPaymentID: pp.ID,
		PaidAmount:       pp.AmountPaid,
		PaymentReference: pp.ReferenceNumber,
		CollectedBy:      pp.CollectedBy,
		Notes:            pp.Notes,
		PaidAt:           pp.PaidAt,
		Status:           models.ViolationPaid,
		Discrepancy:      Discrepancy(pp.AmountPaid, vr.PenaltyAmount),
	}
	fieldcrypt.RevealAll(s.revealer, &res.StallholderName, &res.CollectedBy)

	if res.Discrepancy != 0 {
		slog.InfoContext(ctx, "violation settled with a discrepancy",
			"violation_id", res.ViolationID,
			"penalty_amount", res.PenaltyAmount,
			"paid_amount", res.PaidAmount,
			"discrepancy", res.Discrepancy,
		)
	}

	branchID := vr.BranchID
	audit.Record(ctx, s.audit, audit.LogOptions{
		BranchID:    &branchID,
		UserID:      id.UserID,
		UserName:    id.DisplayName,
		EntityType:  audit.EntityPenaltyPayment,
		EntityID:    pp.ID,
		Action:      models.AuditActionSettle,
		Description: fmt.Sprintf("Violation #%d settled with %s (%.2f)", vr.ID, pp.ReferenceNumber, pp.AmountPaid),
		Before:      map[string]any{"violation_id": vr.ID, "status": models.ViolationUnpaid},
		After:       map[string]any{"violation_id": vr.ID, "status": models.ViolationPaid, "penalty_payment_id": pp.ID},
	})

	return res, nil
}
