package repository

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/google/uuid"
)

// AuditFilterParams holds filters for audit log queries
type AuditFilterParams struct {
	EntityType string
	EntityID   *uuid.UUID
	Actor      *uuid.UUID
	Limit      int
	Offset     int
}

// AuditRepository defines the interface for the append-only audit log.
// Append is the only write path; there is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry *entity.AuditEntry) error
	List(ctx context.Context, params *AuditFilterParams) ([]entity.AuditEntry, int64, error)
}
