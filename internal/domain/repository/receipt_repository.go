package repository

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/google/uuid"
)

// ReceiptRepository defines the interface for receipt data access
type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.Receipt) error
	CreateBatch(ctx context.Context, receipts []*entity.Receipt) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error)
	// Update persists the receipt conditionally on its Version column and
	// bumps it. A stale version returns a ConcurrencyConflict error.
	Update(ctx context.Context, receipt *entity.Receipt) error
	ListByPeriod(ctx context.Context, periodID uuid.UUID, states []enum.ReceiptState, limit, offset int) ([]entity.Receipt, int64, error)
	// ListChildren returns the receipts whose ParentReceiptID is id: the
	// children of a split, or the archived sources of a merge.
	ListChildren(ctx context.Context, id uuid.UUID) ([]entity.Receipt, error)
	// ListByOrder returns every receipt attached to an order, including
	// split children sharing the parent's order.
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]entity.Receipt, error)
	CountByPeriodAndStates(ctx context.Context, periodID uuid.UUID, states []enum.ReceiptState) (int64, error)
}

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *entity.Order) error
	GetWithItems(ctx context.Context, id uuid.UUID) (*entity.Order, error)
	Update(ctx context.Context, order *entity.Order) error
	AppendItems(ctx context.Context, items []entity.OrderItem) error
	SaveItems(ctx context.Context, items []entity.OrderItem) error
}
