package repository

import (
	"context"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	domainRepo "github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"gorm.io/gorm"
)

type sideEffectRepository struct {
	db *gorm.DB
}

// NewSideEffectRepository creates a new side effect task repository
func NewSideEffectRepository(db *gorm.DB) domainRepo.SideEffectRepository {
	return &sideEffectRepository{db: db}
}

func (r *sideEffectRepository) Enqueue(ctx context.Context, task *entity.SideEffectTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// Due claims due tasks inside one transaction so concurrent dispatchers never
// double-run a task.
func (r *sideEffectRepository) Due(ctx context.Context, now time.Time, limit int) ([]entity.SideEffectTask, error) {
	var tasks []entity.SideEffectTask

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("status = ? AND next_attempt_at <= ?", entity.SideEffectStatusPending, now).
			Order("next_attempt_at ASC").
			Limit(limit).
			Find(&tasks).Error; err != nil {
			return err
		}
		for i := range tasks {
			if err := tx.Model(&entity.SideEffectTask{}).
				Where("id = ?", tasks[i].ID).
				Update("status", entity.SideEffectStatusProcessing).Error; err != nil {
				return err
			}
			tasks[i].Status = entity.SideEffectStatusProcessing
		}
		return nil
	})

	return tasks, err
}

func (r *sideEffectRepository) Update(ctx context.Context, task *entity.SideEffectTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}
