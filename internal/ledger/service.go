// Package ledger records rental payments and lists them per branch scope.
package ledger

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
	"stall-backend/internal/metrics"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"

	DefaultListLimit = 50
	MaxListLimit     = 200
)

type RecordPaymentInput struct {
	StallholderID   uint    `json:"stallholderId"`
	Amount          float64 `json:"amount"`
	PaymentDate     string  `json:"paymentDate"`
	PaymentTime     string  `json:"paymentTime"`
	PaymentForMonth string  `json:"paymentForMonth"`
	PaymentType     string  `json:"paymentType"`
	ReferenceNumber string  `json:"referenceNumber"`
	CollectedBy     string  `json:"collectedBy"`
	Notes           string  `json:"notes"`
}

type OnlinePaymentInput struct {
	RecordPaymentInput
	Method models.PaymentMethod `json:"paymentMethod"`
}

type ListPaymentsInput struct {
	Method string
	Limit  int
	Offset int
	Search string
}

// Receipt is returned for every recorded payment.
type Receipt struct {
	PaymentID       uint                 `json:"paymentId"`
	AmountPaid      float64              `json:"amountPaid"`
	ReceiptNumber   string               `json:"receiptNumber"`
	ReferenceNumber string               `json:"referenceNumber"`
	StallholderID   uint                 `json:"stallholderId"`
	BranchID        uint                 `json:"branchId"`
	PaymentDate     string               `json:"paymentDate"`
	PaymentMethod   models.PaymentMethod `json:"paymentMethod"`
	Status          models.PaymentState  `json:"status"`
	Discount        float64              `json:"discount"`
	LateFee         float64              `json:"lateFee"`
	TotalDue        float64              `json:"totalDue"`
}

type Service struct {
	store    storage.PaymentStore
	audit    storage.AuditStore
	revealer fieldcrypt.Revealer
}

func NewService(store storage.PaymentStore, auditStore storage.AuditStore, revealer fieldcrypt.Revealer) *Service {
	if revealer == nil {
		revealer = fieldcrypt.Passthrough{}
	}
	return &Service{store: store, audit: auditStore, revealer: revealer}
}

// parsed is a validated RecordPaymentInput.
type parsed struct {
	date     time.Time
	time     string
	forMonth string
	ref      string
}

// ParseClock accepts HH:MM or HH:MM:SS and returns HH:MM:SS.
func ParseClock(s string) (string, bool) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), true
		}
	}
	return "", false
}

func validate(in RecordPaymentInput, v *apperr.Validation) parsed {
	var p parsed

	v.Require(in.StallholderID > 0, "stallholderId")
	v.Require(models.FitsAmount(in.Amount), "amount")

	date, err := time.Parse(DateLayout, strings.TrimSpace(in.PaymentDate))
	v.Require(err == nil, "paymentDate")
	p.date = date

	p.ref = strings.TrimSpace(in.ReferenceNumber)
	v.Require(p.ref != "" && models.FitsColumn(p.ref, models.ReferenceNumberSize), "referenceNumber")

	if t := strings.TrimSpace(in.PaymentTime); t != "" {
		clock, ok := ParseClock(t)
		v.Require(ok, "paymentTime")
		p.time = clock
	}

	if m := strings.TrimSpace(in.PaymentForMonth); m != "" {
		_, err := time.Parse(MonthLayout, m)
		v.Require(err == nil, "paymentForMonth")
		p.forMonth = m
	} else if err == nil {
		p.forMonth = date.Format(MonthLayout)
	}

	v.Require(models.FitsColumn(strings.TrimSpace(in.PaymentType), models.PaymentTypeSize), "paymentType")
	v.Require(models.FitsColumn(strings.TrimSpace(in.CollectedBy), models.CollectedBySize), "collectedBy")
	v.Require(models.FitsColumn(strings.TrimSpace(in.Notes), models.NotesSize), "notes")
	return p
}

func (s *Service) storeError(op string, err error, stallholderID uint) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound("stallholder", stallholderID)
	case errors.Is(err, storage.ErrDuplicateReference):
		return apperr.Conflict("reference number is already in use")
	default:
		return apperr.Persistence(op, err)
	}
}

func (s *Service) record(ctx context.Context, id access.Identity, scope access.Scope, in RecordPaymentInput, method models.PaymentMethod, v *apperr.Validation) (*Receipt, error) {
	p := validate(in, v)
	if err := v.Err(); err != nil {
		return nil, err
	}

	sh, err := s.store.GetStallholder(ctx, scope, in.StallholderID)
	if err != nil {
		return nil, s.storeError("load stallholder", err, in.StallholderID)
	}

	status := models.PaymentCompleted
	if method != models.MethodOnsite {
		status = models.PaymentPending
	}
	collectedBy := strings.TrimSpace(in.CollectedBy)
	if collectedBy == "" && method == models.MethodOnsite {
		collectedBy = id.DisplayName
	}
	paymentType := strings.TrimSpace(in.PaymentType)
	if paymentType == "" {
		paymentType = models.DefaultPaymentType
	}

	payment := models.Payment{
		StallholderID:   sh.ID,
		Amount:          in.Amount,
		PaymentDate:     p.date,
		PaymentTime:     p.time,
		PaymentForMonth: p.forMonth,
		PaymentType:     paymentType,
		Method:          method,
		ReferenceNumber: p.ref,
		Status:          status,
		CollectedBy:     collectedBy,
		CreatedBy:       id.UserID,
		Notes:           strings.TrimSpace(in.Notes),
	}

	if err := s.store.RecordPayment(ctx, &payment, status == models.PaymentCompleted); err != nil {
		return nil, s.storeError("record payment", err, in.StallholderID)
	}
	metrics.ObservePaymentRecorded(string(method), string(status))

	receipt := &Receipt{
		PaymentID:       payment.ID,
		AmountPaid:      payment.Amount,
		ReceiptNumber:   payment.ReferenceNumber,
		ReferenceNumber: payment.ReferenceNumber,
		StallholderID:   sh.ID,
		BranchID:        sh.BranchID,
		PaymentDate:     payment.PaymentDate.Format(DateLayout),
		PaymentMethod:   method,
		Status:          status,
		TotalDue:        payment.Amount,
	}

	branchID := sh.BranchID
	audit.Record(ctx, s.audit, audit.LogOptions{
		BranchID:    &branchID,
		UserID:      id.UserID,
		UserName:    id.DisplayName,
		EntityType:  audit.EntityPayment,
		EntityID:    payment.ID,
		Action:      models.AuditActionCreate,
		Description: fmt.Sprintf("%s payment %s of %.2f for stallholder #%d", method, payment.ReferenceNumber, payment.Amount, sh.ID),
		After:       receipt,
	})

	return receipt, nil
}

// RecordOnsitePayment stores a completed cash payment and marks the
// stallholder paid, atomically.
func (s *Service) RecordOnsitePayment(ctx context.Context, id access.Identity, scope access.Scope, in RecordPaymentInput) (*Receipt, error) {
	return s.record(ctx, id, scope, in, models.MethodOnsite, &apperr.Validation{})
}

// SubmitOnlinePayment stores a pending payment for later approval.
func (s *Service) SubmitOnlinePayment(ctx context.Context, id access.Identity, scope access.Scope, in OnlinePaymentInput) (*Receipt, error) {
	v := &apperr.Validation{}
	v.Require(in.Method.IsOnline(), "paymentMethod")
	return s.record(ctx, id, scope, in.RecordPaymentInput, in.Method, v)
}

// NormalizeListInput applies defaults and validates paging. Shared with the
// approval review listing.
func NormalizeListInput(in ListPaymentsInput, v *apperr.Validation) storage.PaymentFilter {
	f := storage.PaymentFilter{
		Category: models.Category(strings.ToLower(strings.TrimSpace(in.Method))),
		Search:   strings.TrimSpace(in.Search),
		Limit:    in.Limit,
		Offset:   in.Offset,
	}
	if f.Limit == 0 {
		f.Limit = DefaultListLimit
	}
	v.Require(f.Limit > 0 && f.Limit <= MaxListLimit, "limit")
	v.Require(f.Offset >= 0, "offset")
	return f
}

func listFilter(in ListPaymentsInput) (storage.PaymentFilter, error) {
	v := &apperr.Validation{}
	f := NormalizeListInput(in, v)
	v.Require(f.Category == models.CategoryOnsite || f.Category == models.CategoryOnline, "method")
	return f, v.Err()
}

func (s *Service) ListPayments(ctx context.Context, scope access.Scope, in ListPaymentsInput) ([]PaymentView, error) {
	f, err := listFilter(in)
	if err != nil {
		return nil, err
	}
	if scope.Kind() == access.KindNoAccess {
		return []PaymentView{}, nil
	}

	rows, err := s.store.ListPayments(ctx, scope, f)
	if err != nil {
		return nil, apperr.Persistence("list payments", err)
	}
	return NewPaymentViews(rows, s.revealer), nil
}
