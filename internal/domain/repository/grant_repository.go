package repository

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
)

// OverrideGrantRepository defines the interface for override grant data access
type OverrideGrantRepository interface {
	Create(ctx context.Context, grant *entity.OverrideGrant) error
	// Consume atomically marks the grant consumed and returns it. A grant
	// already consumed, expired or unknown returns nil.
	Consume(ctx context.Context, token string) (*entity.OverrideGrant, error)
}
