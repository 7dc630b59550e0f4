package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CategoryLine aggregates item sales for one product category.
type CategoryLine struct {
	Category      string `json:"category"`
	Quantity      int    `json:"quantity"`
	NetCents      int64  `json:"net_cents"`
	TaxCents      int64  `json:"tax_cents"`
	DiscountCents int64  `json:"discount_cents"`
}

// UserLine aggregates receipts for one owner.
type UserLine struct {
	UserID     uuid.UUID `json:"user_id"`
	Receipts   int       `json:"receipts"`
	TotalCents int64     `json:"total_cents"`
}

// TenderLine aggregates captured payments for one method, excluding
// payments on voided receipts.
type TenderLine struct {
	Method      string `json:"method"`
	AmountCents int64  `json:"amount_cents"`
}

// PeriodReport is the X/Z report body. An X report is this structure computed
// on demand; a Z report is the same structure frozen as a snapshot at period
// close with a report number attached.
type PeriodReport struct {
	WorkPeriodID     uuid.UUID      `json:"work_period_id"`
	ReportNumber     *int64         `json:"report_number,omitempty"`
	GeneratedAt      time.Time      `json:"generated_at"`
	ReceiptCounts    map[string]int `json:"receipt_counts"`
	GrossCents       int64          `json:"gross_cents"`
	TaxCents         int64          `json:"tax_cents"`
	DiscountCents    int64          `json:"discount_cents"`
	ChangeGivenCents int64          `json:"change_given_cents"`
	ByCategory       []CategoryLine `json:"by_category"`
	ByUser           []UserLine     `json:"by_user"`
	ByMethod         []TenderLine   `json:"by_method"`
	PayoutCents      int64          `json:"payout_cents"`
}

// ReportService builds X reports on demand and freezes Z reports at period
// close. Z numbers come from the durable sequence and never repeat or skip.
type ReportService struct {
	reports  repository.ReportRepository
	receipts repository.ReceiptRepository
	orders   repository.OrderRepository
	payments repository.PaymentRepository
	payouts  repository.CashPayoutRepository
	periods  repository.WorkPeriodRepository
	audit    *AuditService
	logger   *logrus.Logger
}

// NewReportService creates a new report service
func NewReportService(
	reports repository.ReportRepository,
	receipts repository.ReceiptRepository,
	orders repository.OrderRepository,
	payments repository.PaymentRepository,
	payouts repository.CashPayoutRepository,
	periods repository.WorkPeriodRepository,
	audit *AuditService,
	logger *logrus.Logger,
) *ReportService {
	return &ReportService{
		reports:  reports,
		receipts: receipts,
		orders:   orders,
		payments: payments,
		payouts:  payouts,
		periods:  periods,
		audit:    audit,
		logger:   logger,
	}
}

// XReport computes the current period aggregates. Read-only and re-runnable
// at any time, before or after close.
func (s *ReportService) XReport(ctx context.Context, periodID uuid.UUID) (*PeriodReport, error) {
	period, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, apperror.NewNotFoundError("Work period")
	}
	return s.aggregate(ctx, periodID)
}

// GenerateZ freezes the period's aggregates under the next report number.
// At most one Z report exists per period; a second call fails with
// AlreadyGenerated.
func (s *ReportService) GenerateZ(ctx context.Context, periodID uuid.UUID, generatedBy uuid.UUID) (*entity.ReportSnapshot, *PeriodReport, error) {
	existing, err := s.reports.GetSnapshotByPeriod(ctx, periodID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, apperror.ErrAlreadyGenerated
	}

	report, err := s.aggregate(ctx, periodID)
	if err != nil {
		return nil, nil, err
	}

	number, err := s.reports.NextSequence(ctx)
	if err != nil {
		return nil, nil, err
	}
	report.ReportNumber = &number

	payload, err := json.Marshal(report)
	if err != nil {
		return nil, nil, err
	}

	snapshot := &entity.ReportSnapshot{
		WorkPeriodID: periodID,
		ReportNumber: number,
		Payload:      string(payload),
		GeneratedBy:  generatedBy,
	}
	if err := s.reports.CreateSnapshot(ctx, snapshot); err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:      generatedBy,
		Action:     enum.AuditActionZReportFreeze,
		EntityType: "report_snapshot",
		EntityID:   snapshot.ID,
		After:      snapshot,
	})

	return snapshot, report, nil
}

// GetZ returns the frozen snapshot for a period.
func (s *ReportService) GetZ(ctx context.Context, periodID uuid.UUID) (*entity.ReportSnapshot, error) {
	snapshot, err := s.reports.GetSnapshotByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, apperror.NewNotFoundError("Z report")
	}
	return snapshot, nil
}

// aggregate walks the period's non-voided Settled and Pending receipts and
// their orders. Voided receipts contribute only to the receipt counts.
func (s *ReportService) aggregate(ctx context.Context, periodID uuid.UUID) (*PeriodReport, error) {
	all, _, err := s.receipts.ListByPeriod(ctx, periodID, nil, 0, 0)
	if err != nil {
		return nil, err
	}

	report := &PeriodReport{
		WorkPeriodID:  periodID,
		GeneratedAt:   time.Now(),
		ReceiptCounts: make(map[string]int),
		ByCategory:    []CategoryLine{},
		ByUser:        []UserLine{},
		ByMethod:      []TenderLine{},
	}

	categories := make(map[string]*CategoryLine)
	users := make(map[uuid.UUID]*UserLine)
	seenOrders := make(map[uuid.UUID]bool)

	for i := range all {
		receipt := &all[i]
		report.ReceiptCounts[receipt.State.String()]++

		if receipt.State != enum.ReceiptStateSettled && receipt.State != enum.ReceiptStatePending {
			continue
		}

		report.GrossCents += receipt.Total
		report.ChangeGivenCents += receipt.ChangeGiven

		user, ok := users[receipt.OwnerID]
		if !ok {
			user = &UserLine{UserID: receipt.OwnerID}
			users[receipt.OwnerID] = user
		}
		user.Receipts++
		user.TotalCents += receipt.Total

		// Equal-split children share the parent's order; count its item
		// lines once no matter how many receipts reference it.
		if seenOrders[receipt.OrderID] {
			continue
		}
		seenOrders[receipt.OrderID] = true

		order, err := s.orders.GetWithItems(ctx, receipt.OrderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			continue
		}
		for _, item := range order.ActiveItems() {
			line, ok := categories[item.Category]
			if !ok {
				line = &CategoryLine{Category: item.Category}
				categories[item.Category] = line
			}
			line.Quantity += item.Quantity
			line.NetCents += item.UnitPrice*int64(item.Quantity) - item.Discount
			line.TaxCents += item.Tax
			line.DiscountCents += item.Discount

			report.TaxCents += item.Tax
			report.DiscountCents += item.Discount
		}
	}

	for _, method := range []enum.PaymentMethod{enum.PaymentMethodCash, enum.PaymentMethodMpesa, enum.PaymentMethodCard} {
		sum, err := s.payments.SumByPeriodAndMethod(ctx, periodID, method)
		if err != nil {
			return nil, err
		}
		if sum != 0 {
			report.ByMethod = append(report.ByMethod, TenderLine{Method: string(method), AmountCents: sum})
		}
	}

	payouts, err := s.payouts.SumForPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	report.PayoutCents = payouts

	for _, line := range categories {
		report.ByCategory = append(report.ByCategory, *line)
	}
	for _, line := range users {
		report.ByUser = append(report.ByUser, *line)
	}
	sort.Slice(report.ByCategory, func(i, j int) bool {
		return report.ByCategory[i].Category < report.ByCategory[j].Category
	})
	sort.Slice(report.ByUser, func(i, j int) bool {
		return report.ByUser[i].UserID.String() < report.ByUser[j].UserID.String()
	})

	return report, nil
}
