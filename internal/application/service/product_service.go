package service

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
)

// ProductService manages the slim catalog behind order lines
type ProductService struct {
	products repository.ProductRepository
}

// NewProductService creates a new product service
func NewProductService(products repository.ProductRepository) *ProductService {
	return &ProductService{products: products}
}

// Create adds a catalog entry
func (s *ProductService) Create(ctx context.Context, name, code, category string, price int64, quantity int) (*entity.Product, error) {
	if name == "" || code == "" {
		return nil, apperror.NewBadRequestError("Name and code are required")
	}
	if price < 0 {
		return nil, apperror.NewBadRequestError("Price cannot be negative")
	}
	if quantity < 0 {
		return nil, apperror.NewBadRequestError("Quantity cannot be negative")
	}

	product := &entity.Product{
		Name:     name,
		Code:     code,
		Category: category,
		Price:    price,
		Quantity: quantity,
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

// Get returns one product by id
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, apperror.NewNotFoundError("Product")
	}
	return product, nil
}

// List returns catalog entries
func (s *ProductService) List(ctx context.Context, limit, offset int) ([]entity.Product, int64, error) {
	return s.products.List(ctx, limit, offset)
}
