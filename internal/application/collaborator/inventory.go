package collaborator

import (
	"context"
	"fmt"

	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
)

// StockInventory is the default Inventory backed by the local product
// catalog's atomic stock operations.
type StockInventory struct {
	products repository.ProductRepository
}

// NewStockInventory creates an inventory collaborator over the product repository
func NewStockInventory(products repository.ProductRepository) *StockInventory {
	return &StockInventory{products: products}
}

func (s *StockInventory) DeductStock(ctx context.Context, quantities map[uuid.UUID]int, receiptID uuid.UUID) error {
	failedIDs, err := s.products.AtomicDecrementBatch(ctx, quantities)
	if err != nil {
		return apperror.NewResourceUnavailableError(fmt.Sprintf("Inventory unavailable: %v", err))
	}
	if len(failedIDs) > 0 {
		return apperror.NewBadRequestError(fmt.Sprintf("Insufficient stock for %d product(s)", len(failedIDs)))
	}
	return nil
}

func (s *StockInventory) ReverseStock(ctx context.Context, quantities map[uuid.UUID]int, receiptID uuid.UUID) error {
	if err := s.products.AtomicIncrementBatch(ctx, quantities); err != nil {
		return apperror.NewResourceUnavailableError(fmt.Sprintf("Inventory unavailable: %v", err))
	}
	return nil
}
