// Package storage defines the typed operations the payment subsystem needs
// from the data store. Each multi-row mutation is a single method so the
// implementation can run it inside one transaction.
//
// Every read and state change takes an access.Scope; implementations must
// return empty results (reads) or ErrNotFound (writes) for NoAccess.
package storage

import (
	"context"
	"errors"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/models"
)

var (
	// ErrNotFound: the row does not exist, is outside the scope, or a
	// compare-and-set matched zero rows.
	ErrNotFound = errors.New("not found")
	// ErrAlreadySettled: the violation is already paid.
	ErrAlreadySettled = errors.New("violation already settled")
	// ErrDuplicateReference: a unique reference number was reused.
	ErrDuplicateReference = errors.New("duplicate reference number")
)

type PaymentFilter struct {
	Category models.Category
	Status   models.PaymentState // empty = any
	Search   string
	Limit    int
	Offset   int
	// ByID orders by id descending instead of payment date. With BeforeID
	// set only ids below it are returned, which gives stable keyset pages.
	ByID     bool
	BeforeID uint
}

// PaymentRow is a payment joined with its stallholder, stall and branch.
// Personal fields are as stored and may be ciphertext.
type PaymentRow struct {
	ID              uint
	StallholderID   uint
	BranchID        uint
	BranchName      string
	StallholderName string
	BusinessName    string
	ContactNumber   string
	Email           string
	StallNumber     string
	Amount          float64
	PaymentDate     time.Time
	PaymentTime     string
	PaymentForMonth string
	PaymentType     string
	Method          models.PaymentMethod
	ReferenceNumber string
	Status          models.PaymentState
	CollectedBy     string
	Notes           string
	ApprovedBy      string
	ApprovedAt      *time.Time
	DeclinedBy      string
	DeclinedAt      *time.Time
	DeclineReason   string
	CreatedAt       time.Time
}

// PaymentDecision is a compare-and-set of a pending payment.
type PaymentDecision struct {
	PaymentID uint
	To        models.PaymentState // completed or declined
	Actor     string
	At        time.Time
	Reason    string
}

// DecidedPayment is what the approval audit entry needs after commit.
type DecidedPayment struct {
	ID            uint
	StallholderID uint
	BranchID      uint
	Amount        float64
	Reference     string
}

type ViolationRow struct {
	ID              uint
	StallholderID   uint
	StallholderName string
	BranchID        uint
	BranchName      string
	StallID         *uint
	StallNumber     string
	ViolationType   string
	Description     string
	PenaltyAmount   float64
	Status          models.ViolationStatus
	ReportedAt      time.Time
}

// Settlement is the outcome of closing one violation.
type Settlement struct {
	Violation ViolationRow
	Payment   models.PenaltyPayment
}

// Period bounds an aggregate to [Start, End). A nil *Period means all time.
type Period struct {
	Start time.Time
	End   time.Time
}

type AuditFilter struct {
	EntityType string
	EntityID   uint
	UserID     uint
	Limit      int
}

type PaymentStore interface {
	// GetStallholder returns ErrNotFound when absent or outside scope.
	GetStallholder(ctx context.Context, scope access.Scope, id uint) (*models.Stallholder, error)
	// RecordPayment inserts p; when markPaid is set the stallholder's
	// payment_status is flipped to paid in the same transaction.
	RecordPayment(ctx context.Context, p *models.Payment, markPaid bool) error
	ListPayments(ctx context.Context, scope access.Scope, f PaymentFilter) ([]PaymentRow, error)
}

type ApprovalStore interface {
	// DecidePayment moves a pending payment to d.To. Approval also marks
	// the stallholder paid in the same transaction.
	DecidePayment(ctx context.Context, scope access.Scope, d PaymentDecision) (*DecidedPayment, error)
}

type SettlementStore interface {
	ListUnpaidViolations(ctx context.Context, scope access.Scope, stallholderID uint) ([]ViolationRow, error)
	// SettleViolation locks the violation, checks it is unpaid, inserts
	// pp and flips the violation to paid, all in one transaction.
	SettleViolation(ctx context.Context, scope access.Scope, violationID uint, pp models.PenaltyPayment) (*Settlement, error)
}

// StatsStore returns raw aggregate rows; values are whatever the driver
// produced (numbers, strings, []byte or nil) and are coerced by the caller.
type StatsStore interface {
	PaymentTotals(ctx context.Context, scope access.Scope, period *Period) (map[string]any, error)
	PaymentBreakdown(ctx context.Context, scope access.Scope, period *Period) ([]map[string]any, error)
	PenaltyTotals(ctx context.Context, scope access.Scope, period *Period) (map[string]any, error)
}

type AuditStore interface {
	WriteAudit(ctx context.Context, entry *models.AuditLog) error
	ListAudit(ctx context.Context, scope access.Scope, f AuditFilter) ([]models.AuditLog, error)
}

// Column names of the aggregate rows returned by StatsStore.
const (
	ColTotalPayments     = "total_payments"
	ColTotalAmount       = "total_amount"
	ColOnlinePayments    = "online_payments"
	ColOnlineAmount      = "online_amount"
	ColOnsitePayments    = "onsite_payments"
	ColOnsiteAmount      = "onsite_amount"
	ColCompletedPayments = "completed_payments"
	ColPendingPayments   = "pending_payments"
	ColDeclinedPayments  = "declined_payments"

	ColMethod = "method"
	ColCount  = "count"
	ColAmount = "amount"

	ColSettledCount      = "settled_count"
	ColSettledAmount     = "settled_amount"
	ColOutstandingCount  = "outstanding_count"
	ColOutstandingAmount = "outstanding_amount"
)
