// Package memory is an in-process implementation of the storage
// interfaces for tests. Each mutating method holds the store lock for its
// whole duration and only commits when every step succeeded, which mirrors
// the transactional guarantees of the postgres store.
package memory

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"
)

var (
	_ storage.PaymentStore    = (*Store)(nil)
	_ storage.ApprovalStore   = (*Store)(nil)
	_ storage.SettlementStore = (*Store)(nil)
	_ storage.StatsStore      = (*Store)(nil)
	_ storage.AuditStore      = (*Store)(nil)
)

// ErrInjected is returned by steps armed with FailNext.
var ErrInjected = errors.New("injected failure")

type Store struct {
	mu sync.Mutex

	nextID uint

	branches     map[uint]models.Branch
	stallholders map[uint]models.Stallholder
	stalls       map[uint]models.Stall
	payments     map[uint]models.Payment
	violations   map[uint]models.Violation
	penalties    map[uint]models.PenaltyPayment
	audit        []models.AuditLog
	assignments  map[uint][]uint

	failNext map[string]bool

	// Queries counts store reads that reach the data; tests use it to
	// assert short-circuits.
	Queries int
}

func New() *Store {
	return &Store{
		branches:     map[uint]models.Branch{},
		stallholders: map[uint]models.Stallholder{},
		stalls:       map[uint]models.Stall{},
		payments:     map[uint]models.Payment{},
		violations:   map[uint]models.Violation{},
		penalties:    map[uint]models.PenaltyPayment{},
		assignments:  map[uint][]uint{},
		failNext:     map[string]bool{},
	}
}

// Step names accepted by FailNext.
const (
	StepInsertPayment     = "insert_payment"
	StepMarkPaid          = "mark_paid"
	StepInsertPenalty     = "insert_penalty"
	StepFlipViolation     = "flip_violation"
	StepWriteAudit        = "write_audit"
	StepAggregatePayments = "aggregate_payments"
)

// FailNext makes the next execution of step fail with ErrInjected.
func (s *Store) FailNext(step string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[step] = true
}

func (s *Store) fail(step string) error {
	if s.failNext[step] {
		delete(s.failNext, step)
		return ErrInjected
	}
	return nil
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// -------------------------
// Fixtures
// -------------------------

// fix returns id, allocating one when zero and keeping later allocations
// clear of explicit ids.
func (s *Store) fix(id uint) uint {
	if id == 0 {
		return s.id()
	}
	if id > s.nextID {
		s.nextID = id
	}
	return id
}

func (s *Store) AddBranch(b models.Branch) models.Branch {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = s.fix(b.ID)
	s.branches[b.ID] = b
	return b
}

func (s *Store) AddStallholder(sh models.Stallholder) models.Stallholder {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh.ID = s.fix(sh.ID)
	if sh.PaymentStatus == "" {
		sh.PaymentStatus = models.PaymentStatusPending
	}
	if sh.ContractStatus == "" {
		sh.ContractStatus = models.ContractActive
	}
	s.stallholders[sh.ID] = sh
	return sh
}

func (s *Store) AddStall(st models.Stall) models.Stall {
	s.mu.Lock()
	defer s.mu.Unlock()
	st.ID = s.fix(st.ID)
	s.stalls[st.ID] = st
	return st
}

func (s *Store) AddViolation(v models.Violation) models.Violation {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.ID = s.fix(v.ID)
	if v.Status == "" {
		v.Status = models.ViolationUnpaid
	}
	if v.ReportedAt.IsZero() {
		v.ReportedAt = time.Now()
	}
	s.violations[v.ID] = v
	return v
}

func (s *Store) AddPayment(p models.Payment) models.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.fix(p.ID)
	p.CreatedAt = time.Now()
	s.payments[p.ID] = p
	return p
}

func (s *Store) Assign(userID uint, branchIDs ...uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[userID] = append(s.assignments[userID], branchIDs...)
}

// -------------------------
// Inspection helpers
// -------------------------

func (s *Store) Stallholder(id uint) (models.Stallholder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.stallholders[id]
	return sh, ok
}

func (s *Store) Payment(id uint) (models.Payment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	return p, ok
}

func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *Store) Violation(id uint) (models.Violation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.violations[id]
	return v, ok
}

func (s *Store) PenaltyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.penalties)
}

func (s *Store) AuditEntries() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditLog(nil), s.audit...)
}

// -------------------------
// access.AssignmentSource
// -------------------------

func (s *Store) AssignedBranchIDs(_ context.Context, userID uint) ([]uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint(nil), s.assignments[userID]...), nil
}

// -------------------------
// storage.PaymentStore
// -------------------------

func (s *Store) GetStallholder(_ context.Context, scope access.Scope, id uint) (*models.Stallholder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if scope.Kind() == access.KindNoAccess {
		return nil, storage.ErrNotFound
	}
	s.Queries++
	sh, ok := s.stallholders[id]
	if !ok || !scope.Allows(sh.BranchID) {
		return nil, storage.ErrNotFound
	}
	return &sh, nil
}

func (s *Store) RecordPayment(_ context.Context, p *models.Payment, markPaid bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fail(StepInsertPayment); err != nil {
		return err
	}
	for _, existing := range s.payments {
		if existing.ReferenceNumber == p.ReferenceNumber {
			return storage.ErrDuplicateReference
		}
	}
	sh, ok := s.stallholders[p.StallholderID]
	if !ok {
		return storage.ErrNotFound
	}

	staged := *p
	staged.ID = s.nextID + 1
	staged.CreatedAt = time.Now()
	staged.UpdatedAt = staged.CreatedAt

	if markPaid {
		if err := s.fail(StepMarkPaid); err != nil {
			return err // nothing committed
		}
		sh.PaymentStatus = models.PaymentStatusPaid
	}

	s.nextID = staged.ID
	s.payments[staged.ID] = staged
	s.stallholders[sh.ID] = sh
	*p = staged
	return nil
}

func (s *Store) paymentRow(p models.Payment) storage.PaymentRow {
	sh := s.stallholders[p.StallholderID]
	row := storage.PaymentRow{
		ID:              p.ID,
		StallholderID:   p.StallholderID,
		BranchID:        sh.BranchID,
		BranchName:      s.branches[sh.BranchID].Name,
		StallholderName: sh.FullName,
		BusinessName:    sh.BusinessName,
		ContactNumber:   sh.ContactNumber,
		Email:           sh.Email,
		Amount:          p.Amount,
		PaymentDate:     p.PaymentDate,
		PaymentTime:     p.PaymentTime,
		PaymentForMonth: p.PaymentForMonth,
		PaymentType:     p.PaymentType,
		Method:          p.Method,
		ReferenceNumber: p.ReferenceNumber,
		Status:          p.Status,
		CollectedBy:     p.CollectedBy,
		Notes:           p.Notes,
		ApprovedBy:      p.ApprovedBy,
		ApprovedAt:      p.ApprovedAt,
		DeclinedBy:      p.DeclinedBy,
		DeclinedAt:      p.DeclinedAt,
		DeclineReason:   p.DeclineReason,
		CreatedAt:       p.CreatedAt,
	}
	for _, st := range s.stalls {
		if st.StallholderID != nil && *st.StallholderID == sh.ID {
			row.StallNumber = st.StallNumber
		}
	}
	return row
}

func (s *Store) ListPayments(_ context.Context, scope access.Scope, f storage.PaymentFilter) ([]storage.PaymentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := []storage.PaymentRow{}
	if scope.Kind() == access.KindNoAccess {
		return rows, nil
	}
	s.Queries++

	term := strings.ToLower(strings.TrimSpace(f.Search))
	for _, p := range s.payments {
		row := s.paymentRow(p)
		if !scope.Allows(row.BranchID) {
			continue
		}
		if f.Category == models.CategoryOnsite && p.Method != models.MethodOnsite {
			continue
		}
		if f.Category == models.CategoryOnline && p.Method == models.MethodOnsite {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.BeforeID > 0 && p.ID >= f.BeforeID {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(row.ReferenceNumber), term) &&
			!strings.Contains(strings.ToLower(row.StallNumber), term) {
			continue
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !f.ByID && !rows[i].PaymentDate.Equal(rows[j].PaymentDate) {
			return rows[i].PaymentDate.After(rows[j].PaymentDate)
		}
		return rows[i].ID > rows[j].ID
	})

	if f.Offset > 0 {
		if f.Offset >= len(rows) {
			return []storage.PaymentRow{}, nil
		}
		rows = rows[f.Offset:]
	}
	if f.Limit > 0 && len(rows) > f.Limit {
		rows = rows[:f.Limit]
	}
	return rows, nil
}

// -------------------------
// storage.ApprovalStore
// -------------------------

func (s *Store) DecidePayment(_ context.Context, scope access.Scope, d storage.PaymentDecision) (*storage.DecidedPayment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scope.Kind() == access.KindNoAccess {
		return nil, storage.ErrNotFound
	}
	p, ok := s.payments[d.PaymentID]
	if !ok || p.Status != models.PaymentPending {
		return nil, storage.ErrNotFound
	}
	sh := s.stallholders[p.StallholderID]
	if !scope.Allows(sh.BranchID) {
		return nil, storage.ErrNotFound
	}

	at := d.At
	switch d.To {
	case models.PaymentCompleted:
		p.ApprovedBy = d.Actor
		p.ApprovedAt = &at
		sh.PaymentStatus = models.PaymentStatusPaid
	case models.PaymentDeclined:
		p.DeclinedBy = d.Actor
		p.DeclinedAt = &at
		p.DeclineReason = d.Reason
	default:
		return nil, errors.New("unsupported payment decision: " + string(d.To))
	}
	p.Status = d.To

	s.payments[p.ID] = p
	s.stallholders[sh.ID] = sh
	return &storage.DecidedPayment{
		ID:            p.ID,
		StallholderID: p.StallholderID,
		BranchID:      sh.BranchID,
		Amount:        p.Amount,
		Reference:     p.ReferenceNumber,
	}, nil
}

// -------------------------
// storage.SettlementStore
// -------------------------

func (s *Store) violationRow(v models.Violation) storage.ViolationRow {
	row := storage.ViolationRow{
		ID:              v.ID,
		StallholderID:   v.StallholderID,
		StallholderName: s.stallholders[v.StallholderID].FullName,
		BranchID:        v.BranchID,
		BranchName:      s.branches[v.BranchID].Name,
		StallID:         v.StallID,
		ViolationType:   v.ViolationType,
		Description:     v.Description,
		PenaltyAmount:   v.PenaltyAmount,
		Status:          v.Status,
		ReportedAt:      v.ReportedAt,
	}
	if v.StallID != nil {
		row.StallNumber = s.stalls[*v.StallID].StallNumber
	}
	return row
}

func (s *Store) ListUnpaidViolations(_ context.Context, scope access.Scope, stallholderID uint) ([]storage.ViolationRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := []storage.ViolationRow{}
	if scope.Kind() == access.KindNoAccess {
		return rows, nil
	}
	s.Queries++
	for _, v := range s.violations {
		if v.StallholderID == stallholderID && v.Status == models.ViolationUnpaid && scope.Allows(v.BranchID) {
			rows = append(rows, s.violationRow(v))
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].ReportedAt.Equal(rows[j].ReportedAt) {
			return rows[i].ReportedAt.Before(rows[j].ReportedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, nil
}

func (s *Store) SettleViolation(_ context.Context, scope access.Scope, violationID uint, pp models.PenaltyPayment) (*storage.Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scope.Kind() == access.KindNoAccess {
		return nil, storage.ErrNotFound
	}
	v, ok := s.violations[violationID]
	if !ok || !scope.Allows(v.BranchID) {
		return nil, storage.ErrNotFound
	}
	if v.Status == models.ViolationPaid {
		return nil, storage.ErrAlreadySettled
	}

	if err := s.fail(StepInsertPenalty); err != nil {
		return nil, err
	}
	for _, existing := range s.penalties {
		if existing.ReferenceNumber == pp.ReferenceNumber || existing.ViolationID == v.ID {
			return nil, storage.ErrDuplicateReference
		}
	}
	pp.ID = s.nextID + 1
	pp.ViolationID = v.ID
	pp.StallholderID = v.StallholderID
	pp.BranchID = v.BranchID
	pp.CreatedAt = time.Now()

	if err := s.fail(StepFlipViolation); err != nil {
		return nil, err // penalty row not committed
	}
	paidAt := pp.PaidAt
	v.Status = models.ViolationPaid
	v.PenaltyPaymentID = &pp.ID
	v.PaidAt = &paidAt

	s.nextID = pp.ID
	s.penalties[pp.ID] = pp
	s.violations[v.ID] = v
	return &storage.Settlement{Violation: s.violationRow(v), Payment: pp}, nil
}

// -------------------------
// storage.StatsStore
// -------------------------

func inPeriod(t time.Time, period *storage.Period) bool {
	return period == nil || (!t.Before(period.Start) && t.Before(period.End))
}

// Aggregates are returned with the value types a SQL driver tends to
// produce: int64 counts, and numeric sums as strings or nil when empty.
func sumValue(total float64, n int64) any {
	if n == 0 {
		return nil
	}
	return strconv.FormatFloat(total, 'f', 2, 64)
}

func (s *Store) PaymentTotals(_ context.Context, scope access.Scope, period *storage.Period) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scope.Kind() == access.KindNoAccess {
		return map[string]any{}, nil
	}
	if err := s.fail(StepAggregatePayments); err != nil {
		return nil, err
	}
	s.Queries++

	var (
		total, online, onsite, completed, pending, declined int64
		totalAmt, onlineAmt, onsiteAmt                      float64
	)
	for _, p := range s.payments {
		if !scope.Allows(s.stallholders[p.StallholderID].BranchID) || !inPeriod(p.PaymentDate, period) {
			continue
		}
		switch p.Status {
		case models.PaymentPending:
			pending++
			continue
		case models.PaymentDeclined:
			declined++
			continue
		}
		completed++
		total++
		totalAmt += p.Amount
		if p.Method == models.MethodOnsite {
			onsite++
			onsiteAmt += p.Amount
		} else {
			online++
			onlineAmt += p.Amount
		}
	}

	return map[string]any{
		storage.ColTotalPayments:     total,
		storage.ColTotalAmount:       sumValue(totalAmt, total),
		storage.ColOnlinePayments:    online,
		storage.ColOnlineAmount:      sumValue(onlineAmt, online),
		storage.ColOnsitePayments:    onsite,
		storage.ColOnsiteAmount:      sumValue(onsiteAmt, onsite),
		storage.ColCompletedPayments: completed,
		storage.ColPendingPayments:   pending,
		storage.ColDeclinedPayments:  declined,
	}, nil
}

func (s *Store) PaymentBreakdown(_ context.Context, scope access.Scope, period *storage.Period) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := []map[string]any{}
	if scope.Kind() == access.KindNoAccess {
		return rows, nil
	}
	s.Queries++

	counts := map[models.PaymentMethod]int64{}
	amounts := map[models.PaymentMethod]float64{}
	for _, p := range s.payments {
		if p.Status != models.PaymentCompleted {
			continue
		}
		if !scope.Allows(s.stallholders[p.StallholderID].BranchID) || !inPeriod(p.PaymentDate, period) {
			continue
		}
		counts[p.Method]++
		amounts[p.Method] += p.Amount
	}
	for m, n := range counts {
		rows = append(rows, map[string]any{
			storage.ColMethod: []byte(m),
			storage.ColCount:  n,
			storage.ColAmount: sumValue(amounts[m], n),
		})
	}
	return rows, nil
}

func (s *Store) PenaltyTotals(_ context.Context, scope access.Scope, period *storage.Period) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if scope.Kind() == access.KindNoAccess {
		return map[string]any{}, nil
	}
	s.Queries++

	var settled, outstanding int64
	var settledAmt, outstandingAmt float64
	for _, pp := range s.penalties {
		if scope.Allows(pp.BranchID) && inPeriod(pp.PaidAt, period) {
			settled++
			settledAmt += pp.AmountPaid
		}
	}
	for _, v := range s.violations {
		if v.Status == models.ViolationUnpaid && scope.Allows(v.BranchID) {
			outstanding++
			outstandingAmt += v.PenaltyAmount
		}
	}
	return map[string]any{
		storage.ColSettledCount:      settled,
		storage.ColSettledAmount:     sumValue(settledAmt, settled),
		storage.ColOutstandingCount:  outstanding,
		storage.ColOutstandingAmount: sumValue(outstandingAmt, outstanding),
	}, nil
}

// -------------------------
// storage.AuditStore
// -------------------------

func (s *Store) WriteAudit(_ context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(StepWriteAudit); err != nil {
		return err
	}
	entry.ID = s.id()
	entry.CreatedAt = time.Now()
	s.audit = append(s.audit, *entry)
	return nil
}

func (s *Store) ListAudit(_ context.Context, scope access.Scope, f storage.AuditFilter) ([]models.AuditLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.AuditLog{}
	if scope.Kind() == access.KindNoAccess {
		return out, nil
	}
	for i := len(s.audit) - 1; i >= 0; i-- {
		e := s.audit[i]
		if scope.Kind() == access.KindBranches && (e.BranchID == nil || !scope.Allows(*e.BranchID)) {
			continue
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		if f.EntityID > 0 && e.EntityID != f.EntityID {
			continue
		}
		if f.UserID > 0 && e.UserID != f.UserID {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}
