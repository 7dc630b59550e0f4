package repository

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/google/uuid"
)

// IdempotencyRepository defines the interface for HTTP idempotency key storage
type IdempotencyRepository interface {
	Create(ctx context.Context, key *entity.IdempotencyKey) error
	GetByKey(ctx context.Context, key string, userID uuid.UUID) (*entity.IdempotencyKey, error)
	DeleteExpired(ctx context.Context) error
}
