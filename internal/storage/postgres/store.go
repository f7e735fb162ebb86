// Package postgres implements the storage interfaces on gorm + PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"strings"

	"stall-backend/internal/access"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	_ storage.PaymentStore    = (*Store)(nil)
	_ storage.ApprovalStore   = (*Store)(nil)
	_ storage.SettlementStore = (*Store)(nil)
	_ storage.StatsStore      = (*Store)(nil)
	_ storage.AuditStore      = (*Store)(nil)
)

// Store needs a *gorm.DB opened with TranslateError so unique violations
// surface as gorm.ErrDuplicatedKey.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// scoped narrows q to the scope. ok is false for NoAccess, in which case
// the caller must not run the query at all.
func scoped(q *gorm.DB, scope access.Scope, column string) (*gorm.DB, bool) {
	switch scope.Kind() {
	case access.KindUnrestricted:
		return q, true
	case access.KindBranches:
		return q.Where(column+" IN ?", scope.BranchIDs()), true
	default:
		return q, false
	}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return storage.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return storage.ErrDuplicateReference
	default:
		return err
	}
}

// -------------------------
// Branch assignments
// -------------------------

func (s *Store) AssignedBranchIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).
		Model(&models.UserBranch{}).
		Where("user_id = ?", userID).
		Order("branch_id asc").
		Pluck("branch_id", &ids).Error
	return ids, err
}

// -------------------------
// Payments
// -------------------------

const paymentRowColumns = `p.id, p.stallholder_id, sh.branch_id, b.name AS branch_name,
	sh.full_name AS stallholder_name, sh.business_name, sh.contact_number, sh.email,
	COALESCE(st.stall_number, '') AS stall_number,
	p.amount, p.payment_date, p.payment_time, p.payment_for_month, p.payment_type,
	p.payment_method AS method, p.reference_number, p.status, p.collected_by, p.notes,
	p.approved_by, p.approved_at, p.declined_by, p.declined_at, p.decline_reason, p.created_at`

func (s *Store) paymentRows(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Table("payments AS p").
		Joins("JOIN stallholders sh ON sh.id = p.stallholder_id").
		Joins("JOIN branches b ON b.id = sh.branch_id").
		Joins("LEFT JOIN stalls st ON st.stallholder_id = sh.id")
}

func (s *Store) GetStallholder(ctx context.Context, scope access.Scope, id uint) (*models.Stallholder, error) {
	q, ok := scoped(s.db.WithContext(ctx), scope, "branch_id")
	if !ok {
		return nil, storage.ErrNotFound
	}

	var sh models.Stallholder
	if err := q.Where("id = ?", id).First(&sh).Error; err != nil {
		return nil, translate(err)
	}
	return &sh, nil
}

func (s *Store) RecordPayment(ctx context.Context, p *models.Payment, markPaid bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(p).Error; err != nil {
			return translate(err)
		}
		if !markPaid {
			return nil
		}

		res := tx.Model(&models.Stallholder{}).
			Where("id = ?", p.StallholderID).
			Update("payment_status", models.PaymentStatusPaid)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
}

func (s *Store) ListPayments(ctx context.Context, scope access.Scope, f storage.PaymentFilter) ([]storage.PaymentRow, error) {
	q, ok := scoped(s.paymentRows(ctx), scope, "sh.branch_id")
	if !ok {
		return []storage.PaymentRow{}, nil
	}

	switch f.Category {
	case models.CategoryOnsite:
		q = q.Where("p.payment_method = ?", models.MethodOnsite)
	case models.CategoryOnline:
		q = q.Where("p.payment_method <> ?", models.MethodOnsite)
	}
	if f.Status != "" {
		q = q.Where("p.status = ?", f.Status)
	}
	if f.BeforeID > 0 {
		q = q.Where("p.id < ?", f.BeforeID)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + term + "%"
		q = q.Where("(p.reference_number ILIKE ? OR st.stall_number ILIKE ?)", like, like)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}

	order := "p.payment_date DESC, p.id DESC"
	if f.ByID {
		order = "p.id DESC"
	}
	rows := []storage.PaymentRow{}
	err := q.Select(paymentRowColumns).
		Order(order).
		Scan(&rows).Error
	return rows, err
}

// -------------------------
// Approval workflow
// -------------------------

func (s *Store) DecidePayment(ctx context.Context, scope access.Scope, d storage.PaymentDecision) (*storage.DecidedPayment, error) {
	if scope.Kind() == access.KindNoAccess {
		return nil, storage.ErrNotFound
	}

	var out storage.DecidedPayment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fields := map[string]any{"status": d.To}
		switch d.To {
		case models.PaymentCompleted:
			fields["approved_by"] = d.Actor
			fields["approved_at"] = d.At
		case models.PaymentDeclined:
			fields["declined_by"] = d.Actor
			fields["declined_at"] = d.At
			fields["decline_reason"] = d.Reason
		default:
			return errors.New("unsupported payment decision: " + string(d.To))
		}

		upd := tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", d.PaymentID, models.PaymentPending)
		if scope.Kind() == access.KindBranches {
			upd = upd.Where("stallholder_id IN (?)",
				tx.Model(&models.Stallholder{}).Select("id").Where("branch_id IN ?", scope.BranchIDs()))
		}
		res := upd.Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrNotFound
		}

		if err := tx.Table("payments AS p").
			Select("p.id, p.stallholder_id, sh.branch_id, p.amount, p.reference_number AS reference").
			Joins("JOIN stallholders sh ON sh.id = p.stallholder_id").
			Where("p.id = ?", d.PaymentID).
			Take(&out).Error; err != nil {
			return translate(err)
		}

		if d.To == models.PaymentCompleted {
			if err := tx.Model(&models.Stallholder{}).
				Where("id = ?", out.StallholderID).
				Update("payment_status", models.PaymentStatusPaid).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// -------------------------
// Violations & settlement
// -------------------------

const violationRowColumns = `v.id, v.stallholder_id, sh.full_name AS stallholder_name,
	v.branch_id, b.name AS branch_name, v.stall_id, COALESCE(st.stall_number, '') AS stall_number,
	v.violation_type, v.description, v.penalty_amount, v.status, v.reported_at`

func violationRows(q *gorm.DB) *gorm.DB {
	return q.Table("violations AS v").
		Select(violationRowColumns).
		Joins("JOIN stallholders sh ON sh.id = v.stallholder_id").
		Joins("JOIN branches b ON b.id = v.branch_id").
		Joins("LEFT JOIN stalls st ON st.id = v.stall_id")
}

func (s *Store) ListUnpaidViolations(ctx context.Context, scope access.Scope, stallholderID uint) ([]storage.ViolationRow, error) {
	q, ok := scoped(violationRows(s.db.WithContext(ctx)), scope, "v.branch_id")
	if !ok {
		return []storage.ViolationRow{}, nil
	}

	rows := []storage.ViolationRow{}
	err := q.Where("v.stallholder_id = ? AND v.status = ?", stallholderID, models.ViolationUnpaid).
		Order("v.reported_at asc, v.id asc").
		Scan(&rows).Error
	return rows, err
}

func (s *Store) SettleViolation(ctx context.Context, scope access.Scope, violationID uint, pp models.PenaltyPayment) (*storage.Settlement, error) {
	if scope.Kind() == access.KindNoAccess {
		return nil, storage.ErrNotFound
	}

	var out storage.Settlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT ... FOR UPDATE serializes concurrent settlements of one violation
		q, _ := scoped(tx.Clauses(clause.Locking{Strength: "UPDATE"}), scope, "branch_id")
		var v models.Violation
		if err := q.Where("id = ?", violationID).First(&v).Error; err != nil {
			return translate(err)
		}
		if v.Status == models.ViolationPaid {
			return storage.ErrAlreadySettled
		}

		pp.ViolationID = v.ID
		pp.StallholderID = v.StallholderID
		pp.BranchID = v.BranchID
		if err := tx.Omit(clause.Associations).Create(&pp).Error; err != nil {
			return translate(err)
		}

		res := tx.Model(&models.Violation{}).
			Where("id = ? AND status = ?", v.ID, models.ViolationUnpaid).
			Updates(map[string]any{
				"status":             models.ViolationPaid,
				"penalty_payment_id": pp.ID,
				"paid_at":            pp.PaidAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return storage.ErrAlreadySettled
		}

		if err := violationRows(tx).Where("v.id = ?", v.ID).Take(&out.Violation).Error; err != nil {
			return translate(err)
		}
		out.Payment = pp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// -------------------------
// Statistics
// -------------------------

const paymentTotalsSelect = `
	COUNT(*) FILTER (WHERE p.status = 'completed') AS total_payments,
	SUM(p.amount) FILTER (WHERE p.status = 'completed') AS total_amount,
	COUNT(*) FILTER (WHERE p.status = 'completed' AND p.payment_method <> 'onsite') AS online_payments,
	SUM(p.amount) FILTER (WHERE p.status = 'completed' AND p.payment_method <> 'onsite') AS online_amount,
	COUNT(*) FILTER (WHERE p.status = 'completed' AND p.payment_method = 'onsite') AS onsite_payments,
	SUM(p.amount) FILTER (WHERE p.status = 'completed' AND p.payment_method = 'onsite') AS onsite_amount,
	COUNT(*) FILTER (WHERE p.status = 'completed') AS completed_payments,
	COUNT(*) FILTER (WHERE p.status = 'pending') AS pending_payments,
	COUNT(*) FILTER (WHERE p.status = 'declined') AS declined_payments`

func (s *Store) paymentAggregate(ctx context.Context, scope access.Scope, period *storage.Period) (*gorm.DB, bool) {
	q := s.db.WithContext(ctx).
		Table("payments AS p").
		Joins("JOIN stallholders sh ON sh.id = p.stallholder_id")
	if period != nil {
		q = q.Where("p.payment_date >= ? AND p.payment_date < ?", period.Start, period.End)
	}
	return scoped(q, scope, "sh.branch_id")
}

func (s *Store) PaymentTotals(ctx context.Context, scope access.Scope, period *storage.Period) (map[string]any, error) {
	q, ok := s.paymentAggregate(ctx, scope, period)
	if !ok {
		return map[string]any{}, nil
	}

	row := map[string]any{}
	err := q.Select(paymentTotalsSelect).Take(&row).Error
	return row, err
}

func (s *Store) PaymentBreakdown(ctx context.Context, scope access.Scope, period *storage.Period) ([]map[string]any, error) {
	q, ok := s.paymentAggregate(ctx, scope, period)
	if !ok {
		return []map[string]any{}, nil
	}

	rows := []map[string]any{}
	err := q.Select("p.payment_method AS method, COUNT(*) AS count, SUM(p.amount) AS amount").
		Where("p.status = ?", models.PaymentCompleted).
		Group("p.payment_method").
		Find(&rows).Error
	return rows, err
}

func (s *Store) PenaltyTotals(ctx context.Context, scope access.Scope, period *storage.Period) (map[string]any, error) {
	db := s.db.WithContext(ctx)

	settledQ := db.Table("penalty_payments AS pp")
	if period != nil {
		settledQ = settledQ.Where("pp.paid_at >= ? AND pp.paid_at < ?", period.Start, period.End)
	}
	settledQ, ok := scoped(settledQ, scope, "pp.branch_id")
	if !ok {
		return map[string]any{}, nil
	}

	settled := map[string]any{}
	if err := settledQ.
		Select("COUNT(*) AS settled_count, SUM(pp.amount_paid) AS settled_amount").
		Take(&settled).Error; err != nil {
		return nil, err
	}

	// outstanding is a point-in-time figure and ignores the period
	outstandingQ, _ := scoped(db.Table("violations AS v").Where("v.status = ?", models.ViolationUnpaid), scope, "v.branch_id")
	outstanding := map[string]any{}
	if err := outstandingQ.
		Select("COUNT(*) AS outstanding_count, SUM(v.penalty_amount) AS outstanding_amount").
		Take(&outstanding).Error; err != nil {
		return nil, err
	}

	for k, v := range outstanding {
		settled[k] = v
	}
	return settled, nil
}

// -------------------------
// Audit trail
// -------------------------

func (s *Store) WriteAudit(ctx context.Context, entry *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) ListAudit(ctx context.Context, scope access.Scope, f storage.AuditFilter) ([]models.AuditLog, error) {
	q, ok := scoped(s.db.WithContext(ctx).Model(&models.AuditLog{}), scope, "branch_id")
	if !ok {
		return []models.AuditLog{}, nil
	}

	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID > 0 {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.UserID > 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	logs := []models.AuditLog{}
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
