package models

import "time"

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPending PaymentStatus = "pending"
)

type ContractStatus string

const (
	ContractActive     ContractStatus = "active"
	ContractExpired    ContractStatus = "expired"
	ContractTerminated ContractStatus = "terminated"
)

// Stallholder is a tenant renting a stall in one branch. FullName,
// BusinessName, ContactNumber and Email may hold field-encrypted values.
type Stallholder struct {
	ID             uint           `gorm:"primaryKey"`
	BranchID       uint           `gorm:"index;not null"`
	Branch         Branch         `gorm:"foreignKey:BranchID"`
	FullName       string         `gorm:"size:512;not null"`
	BusinessName   string         `gorm:"size:512"`
	ContactNumber  string         `gorm:"size:255"`
	Email          string         `gorm:"size:512"`
	PaymentStatus  PaymentStatus  `gorm:"size:20;not null;default:pending"`
	ContractStatus ContractStatus `gorm:"size:20;not null;default:active"`
	Stall          *Stall         `gorm:"foreignKey:StallholderID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
