package models

import (
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// Column widths of the payment and penalty tables. They mirror the gorm
// size tags and are checked before any insert.
const (
	ReferenceNumberSize = 100
	NotesSize           = 500
	DeclineReasonSize   = 500
	PaymentTypeSize     = 30
	CollectedBySize     = 512
)

// amountCeiling is the first value numeric(12,2) cannot hold.
var amountCeiling = decimal.New(1, 10)

// FitsColumn reports whether s fits a varchar(size). PostgreSQL counts
// characters, not bytes.
func FitsColumn(s string, size int) bool {
	return utf8.RuneCountInString(s) <= size
}

// FitsAmount reports whether a is positive and fits numeric(12,2) after
// rounding to cents.
func FitsAmount(a float64) bool {
	return a > 0 && decimal.NewFromFloat(a).Round(2).LessThan(amountCeiling)
}
