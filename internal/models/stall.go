package models

import "time"

type Stall struct {
	ID            uint    `gorm:"primaryKey"`
	BranchID      uint    `gorm:"index;not null"`
	Branch        Branch  `gorm:"foreignKey:BranchID"`
	StallNumber   string  `gorm:"size:50;not null"`
	StallholderID *uint   `gorm:"uniqueIndex"` // at most one occupant
	MonthlyRent   float64 `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
