package ledger

import (
	"context"
	"fmt"
	"io"

	"stall-backend/internal/access"
	"stall-backend/internal/apperr"
	"stall-backend/internal/auth"
	"stall-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Payments"

var exportHeader = []any{
	"ID", "Branch", "Stall", "Stallholder", "Business", "Amount",
	"Payment Date", "Payment Time", "For Month", "Method", "Reference",
	"Status", "Collected By", "Notes",
}

// ExportPayments returns every payment in the category that the scope can
// see, newest id first. Pages are keyed on id so rows inserted while the
// export runs can neither shift nor repeat earlier pages.
func (s *Service) ExportPayments(ctx context.Context, scope access.Scope, in ListPaymentsInput) (models.Category, []PaymentView, error) {
	in.Limit, in.Offset = MaxListLimit, 0
	f, err := listFilter(in)
	if err != nil {
		return "", nil, err
	}
	all := []PaymentView{}
	if scope.Kind() == access.KindNoAccess {
		return f.Category, all, nil
	}

	f.ByID = true
	for {
		rows, err := s.store.ListPayments(ctx, scope, f)
		if err != nil {
			return "", nil, apperr.Persistence("export payments", err)
		}
		all = append(all, NewPaymentViews(rows, s.revealer)...)
		if len(rows) < f.Limit {
			return f.Category, all, nil
		}
		f.BeforeID = rows[len(rows)-1].ID
	}
}

// WritePaymentsXLSX renders views as a single-sheet workbook.
func WritePaymentsXLSX(w io.Writer, views []PaymentView) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(exportSheet, 1, 1, bold); err != nil {
		return err
	}

	for i, v := range views {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{
			v.ID, v.BranchName, v.StallNumber, v.StallholderName, v.BusinessName, v.Amount,
			v.PaymentDate, v.PaymentTime, v.PaymentForMonth, string(v.PaymentMethod), v.ReferenceNumber,
			string(v.Status), v.CollectedBy, v.Notes,
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return err
		}
	}

	_, err = f.WriteTo(w)
	return err
}

// GET /api/payments/export?method=online
func ExportPaymentsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		category, views, err := svc.ExportPayments(c.UserContext(), auth.ScopeFrom(c), ListPaymentsInput{
			Method: c.Query("method"),
			Search: c.Query("search"),
		})
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="payments-%s.xlsx"`, category))
		if err := WritePaymentsXLSX(c.Response().BodyWriter(), views); err != nil {
			return apperr.Persistence("export payments", err)
		}
		return nil
	}
}
