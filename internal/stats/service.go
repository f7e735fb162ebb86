// Package stats aggregates payment and penalty figures per branch scope.
package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"stall-backend/internal/access"
	"stall-backend/internal/apperr"
	"stall-backend/internal/models"
	"stall-backend/internal/storage"

	"github.com/shopspring/decimal"
)

const MonthLayout = "2006-01"

type MethodTotals struct {
	Count  int64   `json:"count"`
	Amount float64 `json:"amount"`
}

type Summary struct {
	TotalPayments     int64                                 `json:"totalPayments"`
	TotalAmount       float64                               `json:"totalAmount"`
	OnlinePayments    int64                                 `json:"onlinePayments"`
	OnlineAmount      float64                               `json:"onlineAmount"`
	OnsitePayments    int64                                 `json:"onsitePayments"`
	OnsiteAmount      float64                               `json:"onsiteAmount"`
	CompletedPayments int64                                 `json:"completedPayments"`
	PendingPayments   int64                                 `json:"pendingPayments"`
	DeclinedPayments  int64                                 `json:"declinedPayments"`
	AveragePayment    float64                               `json:"averagePayment"`
	Breakdown         map[models.PaymentMethod]MethodTotals `json:"breakdown"`
	Month             string                                `json:"month,omitempty"`
}

type PenaltySummary struct {
	SettledCount      int64   `json:"settledCount"`
	SettledAmount     float64 `json:"settledAmount"`
	OutstandingCount  int64   `json:"outstandingCount"`
	OutstandingAmount float64 `json:"outstandingAmount"`
	Month             string  `json:"month,omitempty"`
}

type Service struct {
	store storage.StatsStore
}

func NewService(store storage.StatsStore) *Service {
	return &Service{store: store}
}

// ToDecimal coerces a raw aggregate value. Anything unparseable is zero.
func ToDecimal(v any) decimal.Decimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		d = x
	case []byte:
		d, err = decimal.NewFromString(strings.TrimSpace(string(x)))
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(x))
	case int:
		d = decimal.NewFromInt(int64(x))
	case int32:
		d = decimal.NewFromInt32(x)
	case int64:
		d = decimal.NewFromInt(x)
	case float32:
		d = decimal.NewFromFloat32(x)
	case float64:
		d = decimal.NewFromFloat(x)
	default:
		d, err = decimal.NewFromString(fmt.Sprint(x))
	}
	if err != nil {
		return decimal.Zero
	}
	return d.Round(2)
}

func amount(v any) float64 {
	return ToDecimal(v).InexactFloat64()
}

func count(v any) int64 {
	return ToDecimal(v).IntPart()
}

func text(v any) string {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// ParseMonth turns an optional YYYY-MM into a period; empty means all time.
func ParseMonth(month string) (*storage.Period, error) {
	month = strings.TrimSpace(month)
	if month == "" {
		return nil, nil
	}
	start, err := time.Parse(MonthLayout, month)
	if err != nil {
		return nil, apperr.Invalid("month must be YYYY-MM", "month")
	}
	return &storage.Period{Start: start, End: start.AddDate(0, 1, 0)}, nil
}

func emptyBreakdown() map[models.PaymentMethod]MethodTotals {
	out := make(map[models.PaymentMethod]MethodTotals, len(models.BreakdownMethods))
	for _, m := range models.BreakdownMethods {
		out[m] = MethodTotals{}
	}
	return out
}

func (s *Service) GetStats(ctx context.Context, scope access.Scope, month string) (*Summary, error) {
	period, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}

	sum := &Summary{Breakdown: emptyBreakdown(), Month: strings.TrimSpace(month)}
	if scope.Kind() == access.KindNoAccess {
		return sum, nil
	}

	totals, err := s.store.PaymentTotals(ctx, scope, period)
	if err != nil {
		return nil, apperr.Persistence("aggregate payments", err)
	}
	breakdown, err := s.store.PaymentBreakdown(ctx, scope, period)
	if err != nil {
		return nil, apperr.Persistence("aggregate payment methods", err)
	}

	sum.TotalPayments = count(totals[storage.ColTotalPayments])
	sum.OnlinePayments = count(totals[storage.ColOnlinePayments])
	sum.OnsitePayments = count(totals[storage.ColOnsitePayments])
	sum.CompletedPayments = count(totals[storage.ColCompletedPayments])
	sum.PendingPayments = count(totals[storage.ColPendingPayments])
	sum.DeclinedPayments = count(totals[storage.ColDeclinedPayments])

	total := ToDecimal(totals[storage.ColTotalAmount])
	sum.TotalAmount = total.InexactFloat64()
	sum.OnlineAmount = amount(totals[storage.ColOnlineAmount])
	sum.OnsiteAmount = amount(totals[storage.ColOnsiteAmount])
	if sum.TotalPayments > 0 {
		sum.AveragePayment = total.Div(decimal.NewFromInt(sum.TotalPayments)).Round(2).InexactFloat64()
	}

	for _, row := range breakdown {
		m := models.PaymentMethod(strings.ToLower(text(row[storage.ColMethod])))
		if _, known := sum.Breakdown[m]; !known {
			continue
		}
		sum.Breakdown[m] = MethodTotals{
			Count:  count(row[storage.ColCount]),
			Amount: amount(row[storage.ColAmount]),
		}
	}
	return sum, nil
}

func (s *Service) GetPenaltyStats(ctx context.Context, scope access.Scope, month string) (*PenaltySummary, error) {
	period, err := ParseMonth(month)
	if err != nil {
		return nil, err
	}

	sum := &PenaltySummary{Month: strings.TrimSpace(month)}
	if scope.Kind() == access.KindNoAccess {
		return sum, nil
	}

	row, err := s.store.PenaltyTotals(ctx, scope, period)
	if err != nil {
		return nil, apperr.Persistence("aggregate penalties", err)
	}
	sum.SettledCount = count(row[storage.ColSettledCount])
	sum.SettledAmount = amount(row[storage.ColSettledAmount])
	sum.OutstandingCount = count(row[storage.ColOutstandingCount])
	sum.OutstandingAmount = amount(row[storage.ColOutstandingAmount])
	return sum, nil
}
