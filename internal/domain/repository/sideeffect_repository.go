package repository

import (
	"context"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
)

// SideEffectRepository defines the interface for the post-commit task queue
type SideEffectRepository interface {
	Enqueue(ctx context.Context, task *entity.SideEffectTask) error
	// Due returns pending tasks whose next attempt time has passed and marks
	// them PROCESSING so concurrent dispatchers do not double-run them.
	Due(ctx context.Context, now time.Time, limit int) ([]entity.SideEffectTask, error)
	Update(ctx context.Context, task *entity.SideEffectTask) error
}
