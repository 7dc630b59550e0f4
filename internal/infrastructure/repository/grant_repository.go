package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	domainRepo "github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"gorm.io/gorm"
)

type grantRepository struct {
	db *gorm.DB
}

// NewOverrideGrantRepository creates a new override grant repository
func NewOverrideGrantRepository(db *gorm.DB) domainRepo.OverrideGrantRepository {
	return &grantRepository{db: db}
}

func (r *grantRepository) Create(ctx context.Context, grant *entity.OverrideGrant) error {
	return r.db.WithContext(ctx).Create(grant).Error
}

// Consume marks the grant consumed with a conditional update so two calls
// racing on the same token cannot both succeed.
func (r *grantRepository) Consume(ctx context.Context, token string) (*entity.OverrideGrant, error) {
	var grant entity.OverrideGrant
	err := r.db.WithContext(ctx).First(&grant, "token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if grant.Consumed || grant.IsExpired() {
		return nil, nil
	}

	now := time.Now()
	result := r.db.WithContext(ctx).Model(&entity.OverrideGrant{}).
		Where("token = ? AND consumed = false", token).
		Updates(map[string]interface{}{
			"consumed":    true,
			"consumed_at": now,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	grant.Consumed = true
	grant.ConsumedAt = &now
	return &grant, nil
}
