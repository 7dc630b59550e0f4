package repository

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	domainRepo "github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"gorm.io/gorm"
)

type auditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) domainRepo.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, params *domainRepo.AuditFilterParams) ([]entity.AuditEntry, int64, error) {
	var entries []entity.AuditEntry
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.AuditEntry{})

	if params.EntityType != "" {
		query = query.Where("entity_type = ?", params.EntityType)
	}
	if params.EntityID != nil {
		query = query.Where("entity_id = ?", *params.EntityID)
	}
	if params.Actor != nil {
		query = query.Where("actor = ?", *params.Actor)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	err := query.Order("created_at DESC").Limit(limit).Offset(params.Offset).Find(&entries).Error
	return entries, total, err
}
