package service

import (
	"context"
	"fmt"

	"github.com/dukasoft/tillpoint-api/internal/application/collaborator"
	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SettlementService applies payments against receipt balances. It owns
// payment idempotency (replays are no-ops returning the prior result) and
// the async capture lifecycle for electronic tenders.
type SettlementService struct {
	payments repository.PaymentRepository
	gateway  collaborator.PaymentGateway
	audit    *AuditService
	logger   *logrus.Logger

	// onCaptured is invoked after an async payment confirms, so the ledger
	// can finish the settlement it belongs to.
	onCaptured func(ctx context.Context, receiptID uuid.UUID) error
}

// NewSettlementService creates a new settlement service
func NewSettlementService(
	payments repository.PaymentRepository,
	gateway collaborator.PaymentGateway,
	audit *AuditService,
	logger *logrus.Logger,
) *SettlementService {
	return &SettlementService{
		payments: payments,
		gateway:  gateway,
		audit:    audit,
		logger:   logger,
	}
}

// SetCaptureHandler registers the ledger callback run when an async capture
// confirms.
func (s *SettlementService) SetCaptureHandler(fn func(ctx context.Context, receiptID uuid.UUID) error) {
	s.onCaptured = fn
}

// ApplyPayment validates and records one captured tender against the
// receipt. Replaying an idempotency key returns the prior payment without
// applying the amount again. Non-cash tenders must not exceed the remaining
// balance; cash may, and the overage becomes change.
func (s *SettlementService) ApplyPayment(ctx context.Context, receipt *entity.Receipt, method enum.PaymentMethod, amount int64, reference *string, idempotencyKey string) (*entity.Payment, bool, error) {
	if !method.IsValid() {
		return nil, false, apperror.NewBadRequestError(fmt.Sprintf("Unknown payment method %q", method))
	}
	if amount <= 0 {
		return nil, false, apperror.NewBadRequestError("Payment amount must be positive")
	}
	if idempotencyKey == "" {
		return nil, false, apperror.NewBadRequestError("Idempotency key is required")
	}

	existing, err := s.payments.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	if !method.IsCash() && amount > receipt.Balance() {
		return nil, false, apperror.NewBadRequestError("Electronic tender exceeds the remaining balance")
	}

	payment := &entity.Payment{
		ReceiptID:      receipt.ID,
		WorkPeriodID:   receipt.WorkPeriodID,
		Method:         method,
		Amount:         amount,
		Reference:      reference,
		IdempotencyKey: idempotencyKey,
		Status:         enum.PaymentStatusCaptured,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, false, err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:      receipt.OwnerID,
		Action:     enum.AuditActionPaymentApply,
		EntityType: "payment",
		EntityID:   payment.ID,
		After:      payment,
	})

	return payment, false, nil
}

// InitiateAsync starts an asynchronous capture for an electronic tender. The
// payment stays pending and does not count towards the balance until the
// gateway confirms it.
func (s *SettlementService) InitiateAsync(ctx context.Context, receipt *entity.Receipt, method enum.PaymentMethod, amount int64, reference, idempotencyKey string) (*entity.Payment, error) {
	if method.IsCash() {
		return nil, apperror.NewBadRequestError("Cash payments are captured synchronously")
	}
	if amount <= 0 || amount > receipt.Balance() {
		return nil, apperror.NewBadRequestError("Amount must be positive and within the remaining balance")
	}

	existing, err := s.payments.GetByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	payment := &entity.Payment{
		ReceiptID:      receipt.ID,
		WorkPeriodID:   receipt.WorkPeriodID,
		Method:         method,
		Amount:         amount,
		Reference:      &reference,
		IdempotencyKey: idempotencyKey,
		Status:         enum.PaymentStatusPending,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	if err := s.gateway.InitiatePayment(ctx, method, amount, reference); err != nil {
		payment.Status = enum.PaymentStatusFailed
		if updateErr := s.payments.Update(ctx, payment); updateErr != nil {
			s.logger.WithError(updateErr).Error("failed to mark payment failed")
		}
		return nil, apperror.NewResourceUnavailableError("Payment gateway unreachable")
	}

	return payment, nil
}

// OnPaymentConfirmed marks a pending capture as captured and lets the ledger
// finish the settlement.
func (s *SettlementService) OnPaymentConfirmed(ctx context.Context, reference string) error {
	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	if payment == nil {
		return apperror.NewNotFoundError("Payment")
	}
	if payment.Status != enum.PaymentStatusPending {
		return apperror.NewStateConflictError("Payment is not awaiting confirmation")
	}

	payment.Status = enum.PaymentStatusCaptured
	if err := s.payments.Update(ctx, payment); err != nil {
		return err
	}

	if s.onCaptured != nil {
		if err := s.onCaptured(ctx, payment.ReceiptID); err != nil {
			s.logger.WithFields(logrus.Fields{
				"receipt_id": payment.ReceiptID,
				"reference":  reference,
			}).WithError(err).Error("capture handler failed")
		}
	}
	return nil
}

// OnPaymentFailed marks a pending capture as failed.
func (s *SettlementService) OnPaymentFailed(ctx context.Context, reference string) error {
	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	if payment == nil {
		return apperror.NewNotFoundError("Payment")
	}
	if payment.Status != enum.PaymentStatusPending {
		return apperror.NewStateConflictError("Payment is not awaiting confirmation")
	}

	payment.Status = enum.PaymentStatusFailed
	return s.payments.Update(ctx, payment)
}

// CancelPending cancels an async capture before confirmation. Once captured,
// only Void is available and cancellation is rejected.
func (s *SettlementService) CancelPending(ctx context.Context, reference string, actor Actor) error {
	payment, err := s.payments.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	if payment == nil {
		return apperror.NewNotFoundError("Payment")
	}
	if payment.Status != enum.PaymentStatusPending {
		return apperror.NewStateConflictError("Payment capture already resolved; void the receipt instead")
	}

	payment.Status = enum.PaymentStatusCancelled
	if err := s.payments.Update(ctx, payment); err != nil {
		return err
	}

	s.audit.Record(ctx, RecordOptions{
		Actor:      actor.ID,
		Action:     enum.AuditActionPaymentCancel,
		EntityType: "payment",
		EntityID:   payment.ID,
		Before:     payment,
	})
	return nil
}

// CapturedTotal sums the captured payments recorded against a receipt.
func (s *SettlementService) CapturedTotal(ctx context.Context, receiptID uuid.UUID) (int64, error) {
	payments, err := s.payments.ListByReceipt(ctx, receiptID)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, p := range payments {
		if p.Status == enum.PaymentStatusCaptured {
			total += p.Amount
		}
	}
	return total, nil
}
