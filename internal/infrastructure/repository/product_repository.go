package repository

import (
	"context"
	"errors"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	domainRepo "github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// errShortStock aborts the decrement transaction; it never escapes this file.
var errShortStock = errors.New("insufficient stock")

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) domainRepo.ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *entity.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Product, error) {
	var product entity.Product
	err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &product, err
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]entity.Product, error) {
	var products []entity.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error
	return products, err
}

func (r *productRepository) List(ctx context.Context, limit, offset int) ([]entity.Product, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&entity.Product{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var products []entity.Product
	err := r.db.WithContext(ctx).
		Order("name ASC").
		Limit(limit).Offset(offset).
		Find(&products).Error
	return products, total, err
}

// AtomicDecrementBatch deducts stock for every product in one transaction.
// Each row update is guarded by `quantity >= ?`, so an overdraw shows up as
// zero rows affected; any overdraw rolls the whole batch back and the failing
// ids are reported to the caller.
func (r *productRepository) AtomicDecrementBatch(ctx context.Context, decrements map[uuid.UUID]int) ([]uuid.UUID, error) {
	if len(decrements) == 0 {
		return nil, nil
	}

	var short []uuid.UUID
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, amount := range decrements {
			res := tx.Model(&entity.Product{}).
				Where("id = ? AND quantity >= ?", id, amount).
				Update("quantity", gorm.Expr("quantity - ?", amount))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				short = append(short, id)
			}
		}
		if len(short) > 0 {
			return errShortStock
		}
		return nil
	})

	if errors.Is(err, errShortStock) {
		return short, nil
	}
	return nil, err
}

// AtomicIncrementBatch restores stock, e.g. when a settled receipt is voided.
func (r *productRepository) AtomicIncrementBatch(ctx context.Context, increments map[uuid.UUID]int) error {
	if len(increments) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for id, amount := range increments {
			err := tx.Model(&entity.Product{}).
				Where("id = ?", id).
				Update("quantity", gorm.Expr("quantity + ?", amount)).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
