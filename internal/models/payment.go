package models

import "time"

type PaymentMethod string

const (
	MethodOnsite       PaymentMethod = "onsite"
	MethodGCash        PaymentMethod = "gcash"
	MethodMaya         PaymentMethod = "maya"
	MethodPayMaya      PaymentMethod = "paymaya"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodOnline       PaymentMethod = "online"
)

// BreakdownMethods is the fixed order of the per-method statistics breakdown.
var BreakdownMethods = []PaymentMethod{
	MethodOnsite, MethodGCash, MethodMaya, MethodPayMaya, MethodBankTransfer, MethodOnline,
}

// OnlineMethods are the methods a stallholder can submit for approval.
var OnlineMethods = []PaymentMethod{
	MethodGCash, MethodMaya, MethodPayMaya, MethodBankTransfer, MethodOnline,
}

func (m PaymentMethod) IsOnline() bool {
	for _, o := range OnlineMethods {
		if m == o {
			return true
		}
	}
	return false
}

// Category is the listing filter a method falls under: onsite or online.
type Category string

const (
	CategoryOnsite Category = "onsite"
	CategoryOnline Category = "online"
)

type PaymentState string

const (
	PaymentPending   PaymentState = "pending"
	PaymentCompleted PaymentState = "completed"
	PaymentDeclined  PaymentState = "declined"
)

const DefaultPaymentType = "rental"

// Payment is append-only: after insert only the approval columns change.
type Payment struct {
	ID              uint          `gorm:"primaryKey"`
	StallholderID   uint          `gorm:"index;not null"`
	Stallholder     Stallholder   `gorm:"foreignKey:StallholderID"`
	Amount          float64       `gorm:"type:numeric(12,2);not null"`
	PaymentDate     time.Time     `gorm:"type:date;index;not null"`
	PaymentTime     string        `gorm:"size:8"`
	PaymentForMonth string        `gorm:"size:7"` // YYYY-MM
	PaymentType     string        `gorm:"size:30;not null;default:rental"`
	Method          PaymentMethod `gorm:"column:payment_method;size:20;index;not null"`
	ReferenceNumber string        `gorm:"size:100;uniqueIndex;not null"`
	Status          PaymentState  `gorm:"size:20;index;not null"`
	CollectedBy     string        `gorm:"size:512"`
	CreatedBy       uint
	Notes           string `gorm:"size:500"`
	ApprovedBy      string `gorm:"size:200"`
	ApprovedAt      *time.Time
	DeclinedBy      string `gorm:"size:200"`
	DeclinedAt      *time.Time
	DeclineReason   string `gorm:"size:500"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
