package repository

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/google/uuid"
)

// PaymentRepository defines the interface for payment data access
type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	Update(ctx context.Context, payment *entity.Payment) error
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.Payment, error)
	GetByReference(ctx context.Context, reference string) (*entity.Payment, error)
	ListByReceipt(ctx context.Context, receiptID uuid.UUID) ([]entity.Payment, error)
	ListByPeriod(ctx context.Context, periodID uuid.UUID) ([]entity.Payment, error)
	// SumByPeriodAndMethod sums captured payments for one tender type,
	// excluding payments whose receipts were voided.
	SumByPeriodAndMethod(ctx context.Context, periodID uuid.UUID, method enum.PaymentMethod) (int64, error)
}
