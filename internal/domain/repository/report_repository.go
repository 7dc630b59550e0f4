package repository

import (
	"context"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/google/uuid"
)

// ReportRepository defines the interface for Z report snapshots and the
// durable report sequence counter
type ReportRepository interface {
	// NextSequence increments and returns the Z report counter. The
	// increment is durable: numbers across period closes have no gaps.
	NextSequence(ctx context.Context) (int64, error)
	CreateSnapshot(ctx context.Context, snapshot *entity.ReportSnapshot) error
	GetSnapshotByPeriod(ctx context.Context, periodID uuid.UUID) (*entity.ReportSnapshot, error)
}
