package repository

import (
	"context"
	"errors"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	domainRepo "github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type workPeriodRepository struct {
	db *gorm.DB
}

// NewWorkPeriodRepository creates a new work period repository
func NewWorkPeriodRepository(db *gorm.DB) domainRepo.WorkPeriodRepository {
	return &workPeriodRepository{db: db}
}

func (r *workPeriodRepository) Create(ctx context.Context, period *entity.WorkPeriod) error {
	return r.db.WithContext(ctx).Create(period).Error
}

func (r *workPeriodRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.WorkPeriod, error) {
	var period entity.WorkPeriod
	err := r.db.WithContext(ctx).First(&period, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &period, err
}

func (r *workPeriodRepository) GetOpen(ctx context.Context, registerGroup string) (*entity.WorkPeriod, error) {
	var period entity.WorkPeriod
	err := r.db.WithContext(ctx).
		First(&period, "register_group = ? AND status = ?", registerGroup, enum.PeriodStatusOpen).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &period, err
}

func (r *workPeriodRepository) Update(ctx context.Context, period *entity.WorkPeriod) error {
	return r.db.WithContext(ctx).Save(period).Error
}

func (r *workPeriodRepository) List(ctx context.Context, limit, offset int) ([]entity.WorkPeriod, int64, error) {
	var periods []entity.WorkPeriod
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.WorkPeriod{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("opened_at DESC").Limit(limit).Offset(offset).Find(&periods).Error
	return periods, total, err
}

type cashPayoutRepository struct {
	db *gorm.DB
}

// NewCashPayoutRepository creates a new cash payout repository
func NewCashPayoutRepository(db *gorm.DB) domainRepo.CashPayoutRepository {
	return &cashPayoutRepository{db: db}
}

func (r *cashPayoutRepository) Create(ctx context.Context, payout *entity.CashPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

func (r *cashPayoutRepository) SumForPeriod(ctx context.Context, periodID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&entity.CashPayout{}).
		Where("work_period_id = ?", periodID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

func (r *cashPayoutRepository) ListForPeriod(ctx context.Context, periodID uuid.UUID) ([]entity.CashPayout, error) {
	var payouts []entity.CashPayout
	err := r.db.WithContext(ctx).
		Where("work_period_id = ?", periodID).
		Order("created_at ASC").
		Find(&payouts).Error
	return payouts, err
}
