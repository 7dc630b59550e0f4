package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	domainRepo "github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a new receipt repository
func NewReceiptRepository(db *gorm.DB) domainRepo.ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) Create(ctx context.Context, receipt *entity.Receipt) error {
	return r.db.WithContext(ctx).Create(receipt).Error
}

func (r *receiptRepository) CreateBatch(ctx context.Context, receipts []*entity.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(receipts).Error
}

func (r *receiptRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Receipt, error) {
	var receipt entity.Receipt
	err := r.db.WithContext(ctx).First(&receipt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &receipt, err
}

// Update writes the receipt conditionally on its version. RowsAffected == 0
// means another writer got there first; the caller retries with fresh state.
func (r *receiptRepository) Update(ctx context.Context, receipt *entity.Receipt) error {
	result := r.db.WithContext(ctx).Model(&entity.Receipt{}).
		Where("id = ? AND version = ?", receipt.ID, receipt.Version).
		Updates(map[string]interface{}{
			"state":             receipt.State,
			"total":             receipt.Total,
			"paid_amount":       receipt.PaidAmount,
			"change_given":      receipt.ChangeGiven,
			"parent_receipt_id": receipt.ParentReceiptID,
			"void_reason":       receipt.VoidReason,
			"voided_by":         receipt.VoidedBy,
			"version":           receipt.Version + 1,
			"updated_at":        time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperror.ErrVersionConflict
	}
	receipt.Version++
	return nil
}

func (r *receiptRepository) ListByPeriod(ctx context.Context, periodID uuid.UUID, states []enum.ReceiptState, limit, offset int) ([]entity.Receipt, int64, error) {
	var receipts []entity.Receipt
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Receipt{}).Where("work_period_id = ?", periodID)
	if len(states) > 0 {
		query = query.Where("state IN ?", states)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}
	err := query.Order("created_at ASC").Find(&receipts).Error
	return receipts, total, err
}

func (r *receiptRepository) ListChildren(ctx context.Context, id uuid.UUID) ([]entity.Receipt, error) {
	var receipts []entity.Receipt
	err := r.db.WithContext(ctx).
		Where("parent_receipt_id = ?", id).
		Order("created_at ASC").
		Find(&receipts).Error
	return receipts, err
}

func (r *receiptRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]entity.Receipt, error) {
	var receipts []entity.Receipt
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&receipts).Error
	return receipts, err
}

func (r *receiptRepository) CountByPeriodAndStates(ctx context.Context, periodID uuid.UUID, states []enum.ReceiptState) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Receipt{}).
		Where("work_period_id = ? AND state IN ?", periodID, states).
		Count(&count).Error
	return count, err
}

type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *gorm.DB) domainRepo.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *orderRepository) GetWithItems(ctx context.Context, id uuid.UUID) (*entity.Order, error) {
	var order entity.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_items.created_at ASC")
		}).
		First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &order, err
}

func (r *orderRepository) Update(ctx context.Context, order *entity.Order) error {
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

func (r *orderRepository) AppendItems(ctx context.Context, items []entity.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *orderRepository) SaveItems(ctx context.Context, items []entity.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Save(&items).Error
}
