package ledger

import (
	"time"

	"stall-backend/internal/fieldcrypt"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"
)

type PaymentView struct {
	ID              uint                 `json:"id"`
	StallholderID   uint                 `json:"stallholderId"`
	StallholderName string               `json:"stallholderName"`
	BusinessName    string               `json:"businessName"`
	ContactNumber   string               `json:"contactNumber"`
	Email           string               `json:"email"`
	StallNumber     string               `json:"stallNumber"`
	BranchID        uint                 `json:"branchId"`
	BranchName      string               `json:"branchName"`
	Amount          float64              `json:"amount"`
	PaymentDate     string               `json:"paymentDate"`
	PaymentTime     string               `json:"paymentTime"`
	PaymentForMonth string               `json:"paymentForMonth"`
	PaymentType     string               `json:"paymentType"`
	PaymentMethod   models.PaymentMethod `json:"paymentMethod"`
	ReferenceNumber string               `json:"referenceNumber"`
	Status          models.PaymentState  `json:"status"`
	CollectedBy     string               `json:"collectedBy"`
	Notes           string               `json:"notes"`
	ApprovedBy      string               `json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time           `json:"approvedAt,omitempty"`
	DeclinedBy      string               `json:"declinedBy,omitempty"`
	DeclinedAt      *time.Time           `json:"declinedAt,omitempty"`
	DeclineReason   string               `json:"declineReason,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
}

// encryptedFields is the set of view fields that may hold ciphertext. Each
// one is revealed on its own so one bad value leaves the rest readable.
func encryptedFields(v *PaymentView) []*string {
	return []*string{
		&v.StallholderName,
		&v.BusinessName,
		&v.ContactNumber,
		&v.Email,
		&v.CollectedBy,
	}
}

func NewPaymentView(row storage.PaymentRow, r fieldcrypt.Revealer) PaymentView {
	v := PaymentView{
		ID:              row.ID,
		StallholderID:   row.StallholderID,
		StallholderName: row.StallholderName,
		BusinessName:    row.BusinessName,
		ContactNumber:   row.ContactNumber,
		Email:           row.Email,
		StallNumber:     row.StallNumber,
		BranchID:        row.BranchID,
		BranchName:      row.BranchName,
		Amount:          row.Amount,
		PaymentDate:     row.PaymentDate.Format(DateLayout),
		PaymentTime:     row.PaymentTime,
		PaymentForMonth: row.PaymentForMonth,
		PaymentType:     row.PaymentType,
		PaymentMethod:   row.Method,
		ReferenceNumber: row.ReferenceNumber,
		Status:          row.Status,
		CollectedBy:     row.CollectedBy,
		Notes:           row.Notes,
		ApprovedBy:      row.ApprovedBy,
		ApprovedAt:      row.ApprovedAt,
		DeclinedBy:      row.DeclinedBy,
		DeclinedAt:      row.DeclinedAt,
		DeclineReason:   row.DeclineReason,
		CreatedAt:       row.CreatedAt,
	}
	fieldcrypt.RevealAll(r, encryptedFields(&v)...)
	return v
}

func NewPaymentViews(rows []storage.PaymentRow, r fieldcrypt.Revealer) []PaymentView {
	out := make([]PaymentView, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewPaymentView(row, r))
	}
	return out
}
