package service

import (
	"context"
	"encoding/json"

	"github.com/dukasoft/tillpoint-api/internal/domain/entity"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// AuditService is the single write path into the append-only audit log.
// Every state transition performed by the ledger writes exactly one entry.
type AuditService struct {
	repo   repository.AuditRepository
	logger *logrus.Logger
}

// NewAuditService creates a new audit service
func NewAuditService(repo repository.AuditRepository, logger *logrus.Logger) *AuditService {
	return &AuditService{repo: repo, logger: logger}
}

// RecordOptions describes one audit entry
type RecordOptions struct {
	Actor        uuid.UUID
	AuthorizedBy *uuid.UUID
	Action       enum.AuditAction
	EntityType   string
	EntityID     uuid.UUID
	Reason       string
	Before       any
	After        any
}

// Record appends one entry. A failed append is logged but does not fail the
// triggering operation once its own write committed.
func (s *AuditService) Record(ctx context.Context, opts RecordOptions) {
	entry := &entity.AuditEntry{
		Actor:        opts.Actor,
		AuthorizedBy: opts.AuthorizedBy,
		Action:       opts.Action,
		EntityType:   opts.EntityType,
		EntityID:     opts.EntityID,
		Reason:       opts.Reason,
		BeforeData:   marshalOrNull(opts.Before),
		AfterData:    marshalOrNull(opts.After),
	}

	if err := s.repo.Append(ctx, entry); err != nil {
		s.logger.WithFields(logrus.Fields{
			"action":    opts.Action,
			"entity_id": opts.EntityID,
		}).WithError(err).Error("failed to append audit entry")
	}
}

// List returns audit entries matching the filter.
func (s *AuditService) List(ctx context.Context, params *repository.AuditFilterParams) ([]entity.AuditEntry, int64, error) {
	return s.repo.List(ctx, params)
}

// marshalOrNull serializes a snapshot for the jsonb column; nil becomes the
// JSON null literal, not an empty string.
func marshalOrNull(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
