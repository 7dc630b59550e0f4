package service

import (
	"context"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/internal/locking"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Close policy values for PeriodPolicies.ClosePolicy.
const (
	CloseBlockUnsettled = "block_unsettled"
	CloseWarnUnsettled  = "warn_unsettled"
)

// PeriodPolicies carries the deployment-configurable close behavior.
type PeriodPolicies struct {
	// ClosePolicy decides whether unsettled receipts block the close or
	// just produce a warning.
	ClosePolicy string
	// CloseWait bounds how long ClosePeriod waits for in-flight ledger
	// operations to drain before failing with PeriodBusy.
	CloseWait time.Duration
}

// CloseResult is what ClosePeriod returns: the closed period with its
// reconciliation figures, the frozen Z report and any close warnings.
type CloseResult struct {
	Period   *entity.WorkPeriod     `json:"period"`
	Snapshot *entity.ReportSnapshot `json:"z_report"`
	Warnings []string               `json:"warnings,omitempty"`
}

// WorkPeriodService manages the shift lifecycle: opening, cash payouts and
// the close with cash reconciliation and the Z report freeze.
type WorkPeriodService struct {
	periods  repository.WorkPeriodRepository
	payouts  repository.CashPayoutRepository
	receipts repository.ReceiptRepository
	payments repository.PaymentRepository
	reports  *ReportService
	guard    *GuardService
	audit    *AuditService
	gate     *locking.PeriodGate
	logger   *logrus.Logger
	policies PeriodPolicies
}

// NewWorkPeriodService creates a new work period service
func NewWorkPeriodService(
	periods repository.WorkPeriodRepository,
	payouts repository.CashPayoutRepository,
	receipts repository.ReceiptRepository,
	payments repository.PaymentRepository,
	reports *ReportService,
	guard *GuardService,
	audit *AuditService,
	gate *locking.PeriodGate,
	logger *logrus.Logger,
	policies PeriodPolicies,
) *WorkPeriodService {
	if policies.CloseWait <= 0 {
		policies.CloseWait = 3 * time.Second
	}
	return &WorkPeriodService{
		periods:  periods,
		payouts:  payouts,
		receipts: receipts,
		payments: payments,
		reports:  reports,
		guard:    guard,
		audit:    audit,
		gate:     gate,
		logger:   logger,
		policies: policies,
	}
}

// Open starts a new work period for the register group. At most one period
// per group may be open at a time.
func (s *WorkPeriodService) Open(ctx context.Context, actor Actor, registerGroup string, openingFloat int64) (*entity.WorkPeriod, error) {
	if err := s.guard.Evaluate(actor, "period.open"); err != nil {
		return nil, err
	}
	if openingFloat < 0 {
		return nil, apperror.NewBadRequestError("Opening float cannot be negative")
	}
	if registerGroup == "" {
		registerGroup = "main"
	}

	existing, err := s.periods.GetOpen(ctx, registerGroup)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperror.ErrAlreadyOpen
	}

	period := &entity.WorkPeriod{
		RegisterGroup: registerGroup,
		Status:        enum.PeriodStatusOpen,
		OpenedBy:      actor.ID,
		OpenedAt:      time.Now(),
		OpeningFloat:  openingFloat,
	}
	if err := s.periods.Create(ctx, period); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:      actor.ID,
		Action:     enum.AuditActionPeriodOpen,
		EntityType: "work_period",
		EntityID:   period.ID,
		After:      period,
	})

	return period, nil
}

// Close reconciles and closes a work period. In-flight ledger operations are
// drained first; if they do not drain within the wait window the close fails
// with PeriodBusy and can simply be retried. The Z report is frozen as part
// of the close, so every closed period carries exactly one Z number.
func (s *WorkPeriodService) Close(ctx context.Context, actor Actor, periodID uuid.UUID, closingCashCount int64) (*CloseResult, error) {
	if err := s.guard.Evaluate(actor, "period.close"); err != nil {
		return nil, err
	}
	if closingCashCount < 0 {
		return nil, apperror.NewBadRequestError("Closing cash count cannot be negative")
	}

	period, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, apperror.NewNotFoundError("Work period")
	}
	if !period.IsOpen() {
		return nil, apperror.ErrAlreadyClosed
	}

	release, ok := s.gate.BeginClose(period.ID, s.policies.CloseWait)
	if !ok {
		return nil, apperror.ErrPeriodBusy
	}
	defer release()

	// Re-read under the gate: a concurrent close may have won the race.
	period, err = s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil || !period.IsOpen() {
		return nil, apperror.ErrAlreadyClosed
	}

	var warnings []string
	unsettled, err := s.receipts.CountByPeriodAndStates(ctx, period.ID,
		[]enum.ReceiptState{enum.ReceiptStateCreated, enum.ReceiptStatePending})
	if err != nil {
		return nil, err
	}
	if unsettled > 0 {
		if s.policies.ClosePolicy != CloseWarnUnsettled {
			return nil, apperror.ErrUnsettledReceipts
		}
		warnings = append(warnings, "period closed with unsettled receipts")
		s.logger.WithFields(logrus.Fields{
			"work_period_id": period.ID,
			"unsettled":      unsettled,
		}).Warn("closing period with unsettled receipts")
	}

	cashTaken, err := s.payments.SumByPeriodAndMethod(ctx, period.ID, enum.PaymentMethodCash)
	if err != nil {
		return nil, err
	}
	paidOut, err := s.payouts.SumForPeriod(ctx, period.ID)
	if err != nil {
		return nil, err
	}

	expected := period.OpeningFloat + cashTaken - paidOut
	variance := closingCashCount - expected

	snapshot, _, err := s.reports.GenerateZ(ctx, period.ID, actor.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	before := *period
	period.Status = enum.PeriodStatusClosed
	period.ClosedBy = &actor.ID
	period.ClosedAt = &now
	period.ClosingCashCount = &closingCashCount
	period.ExpectedCash = &expected
	period.Variance = &variance
	period.ZReportNumber = &snapshot.ReportNumber
	if err := s.periods.Update(ctx, period); err != nil {
		return nil, err
	}
	s.gate.Forget(period.ID)

	s.audit.Record(ctx, RecordOptions{
		Actor:      actor.ID,
		Action:     enum.AuditActionPeriodClose,
		EntityType: "work_period",
		EntityID:   period.ID,
		Before:     before,
		After:      period,
	})

	return &CloseResult{Period: period, Snapshot: snapshot, Warnings: warnings}, nil
}

// RecordPayout registers cash removed from the drawer mid-period. Payouts
// reduce the expected cash at close.
func (s *WorkPeriodService) RecordPayout(ctx context.Context, actor Actor, periodID uuid.UUID, amount int64, reason string) (*entity.CashPayout, error) {
	if err := s.guard.Evaluate(actor, "period.payout"); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperror.NewBadRequestError("Payout amount must be positive")
	}
	if reason == "" {
		return nil, apperror.NewBadRequestError("Payout reason is required")
	}

	period, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, apperror.NewNotFoundError("Work period")
	}
	if !period.IsOpen() {
		return nil, apperror.ErrAlreadyClosed
	}

	release := s.gate.Enter(period.ID)
	defer release()

	payout := &entity.CashPayout{
		WorkPeriodID: period.ID,
		Amount:       amount,
		Reason:       reason,
		RecordedBy:   actor.ID,
	}
	if err := s.payouts.Create(ctx, payout); err != nil {
		return nil, err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:      actor.ID,
		Action:     enum.AuditActionPayoutRecord,
		EntityType: "cash_payout",
		EntityID:   payout.ID,
		Reason:     reason,
		After:      payout,
	})

	return payout, nil
}

// Current returns the open period for a register group, or NotFound.
func (s *WorkPeriodService) Current(ctx context.Context, registerGroup string) (*entity.WorkPeriod, error) {
	if registerGroup == "" {
		registerGroup = "main"
	}
	period, err := s.periods.GetOpen(ctx, registerGroup)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, apperror.NewNotFoundError("Open work period")
	}
	return period, nil
}

// Get returns one period by id.
func (s *WorkPeriodService) Get(ctx context.Context, periodID uuid.UUID) (*entity.WorkPeriod, error) {
	period, err := s.periods.GetByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, apperror.NewNotFoundError("Work period")
	}
	return period, nil
}

// List returns periods newest first.
func (s *WorkPeriodService) List(ctx context.Context, limit, offset int) ([]entity.WorkPeriod, int64, error) {
	return s.periods.List(ctx, limit, offset)
}

// Payouts returns the payouts recorded in a period.
func (s *WorkPeriodService) Payouts(ctx context.Context, periodID uuid.UUID) ([]entity.CashPayout, error) {
	return s.payouts.ListForPeriod(ctx, periodID)
}
