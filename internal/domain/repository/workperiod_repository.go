package repository

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/google/uuid"
)

// WorkPeriodRepository defines the interface for work period data access
type WorkPeriodRepository interface {
	Create(ctx context.Context, period *entity.WorkPeriod) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.WorkPeriod, error)
	// GetOpen returns the currently open period for a register group, or nil.
	GetOpen(ctx context.Context, registerGroup string) (*entity.WorkPeriod, error)
	Update(ctx context.Context, period *entity.WorkPeriod) error
	List(ctx context.Context, limit, offset int) ([]entity.WorkPeriod, int64, error)
}

// CashPayoutRepository defines the interface for cash payout data access
type CashPayoutRepository interface {
	Create(ctx context.Context, payout *entity.CashPayout) error
	SumForPeriod(ctx context.Context, periodID uuid.UUID) (int64, error)
	ListForPeriod(ctx context.Context, periodID uuid.UUID) ([]entity.CashPayout, error)
}
