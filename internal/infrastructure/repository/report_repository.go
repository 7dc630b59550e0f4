package repository

import (
	"context"
	"errors"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	domainRepo "github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type reportRepository struct {
	db *gorm.DB
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *gorm.DB) domainRepo.ReportRepository {
	return &reportRepository{db: db}
}

// NextSequence bumps the single-row counter atomically. The row is created
// by the seeder with value 0, so the first Z report is number 1.
func (r *reportRepository) NextSequence(ctx context.Context) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).
		Raw("UPDATE z_sequences SET value = value + 1 WHERE id = 1 RETURNING value").
		Scan(&value).Error
	return value, err
}

func (r *reportRepository) CreateSnapshot(ctx context.Context, snapshot *entity.ReportSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *reportRepository) GetSnapshotByPeriod(ctx context.Context, periodID uuid.UUID) (*entity.ReportSnapshot, error) {
	var snapshot entity.ReportSnapshot
	err := r.db.WithContext(ctx).First(&snapshot, "work_period_id = ?", periodID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &snapshot, err
}
