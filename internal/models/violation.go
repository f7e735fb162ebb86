package models

import "time"

type ViolationStatus string

const (
	ViolationUnpaid ViolationStatus = "unpaid"
	ViolationPaid   ViolationStatus = "paid"
)

// Violation is created by inspection reporting and flips unpaid -> paid
// exactly once.
type Violation struct {
	ID               uint            `gorm:"primaryKey"`
	StallholderID    uint            `gorm:"index;not null"`
	Stallholder      Stallholder     `gorm:"foreignKey:StallholderID"`
	BranchID         uint            `gorm:"index;not null"`
	Branch           Branch          `gorm:"foreignKey:BranchID"`
	StallID          *uint           `gorm:"index"`
	Stall            *Stall          `gorm:"foreignKey:StallID"`
	ViolationType    string          `gorm:"size:100;not null"`
	Description      string          `gorm:"size:500"`
	PenaltyAmount    float64         `gorm:"type:numeric(12,2);not null"`
	Status           ViolationStatus `gorm:"size:20;index;not null;default:unpaid"`
	PenaltyPaymentID *uint
	PaidAt           *time.Time
	ReportedAt       time.Time `gorm:"not null"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PenaltyPayment closes exactly one violation.
type PenaltyPayment struct {
	ID              uint      `gorm:"primaryKey"`
	ViolationID     uint      `gorm:"uniqueIndex;not null"`
	Violation       Violation `gorm:"foreignKey:ViolationID"`
	StallholderID   uint      `gorm:"index;not null"`
	BranchID        uint      `gorm:"index;not null"`
	AmountPaid      float64   `gorm:"type:numeric(12,2);not null"`
	ReferenceNumber string    `gorm:"size:100;uniqueIndex;not null"`
	CollectedBy     string    `gorm:"size:512"`
	Notes           string    `gorm:"size:500"`
	PaidAt          time.Time `gorm:"index;not null"`
	CreatedAt       time.Time
}
