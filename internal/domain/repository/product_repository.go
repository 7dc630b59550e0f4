package repository

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/google/uuid"
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Product, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Product, error)
	List(ctx context.Context, limit, offset int) ([]entity.Product, int64, error)
	// AtomicDecrementBatch decrements stock for multiple products in one
	// transaction. Returns the IDs that had insufficient stock; if any, the
	// whole transaction is rolled back.
	AtomicDecrementBatch(ctx context.Context, decrements map[uuid.UUID]int) ([]uuid.UUID, error)
	// AtomicIncrementBatch restores stock for multiple products in one transaction.
	AtomicIncrementBatch(ctx context.Context, increments map[uuid.UUID]int) error
}
