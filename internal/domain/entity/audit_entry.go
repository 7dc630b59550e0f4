package entity

import (
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditEntry is one immutable record in the append-only audit log. Every
// state transition performed by the ledger writes exactly one entry. Entries
// are never updated or deleted; there is no soft delete column on purpose.
type AuditEntry struct {
	ID           uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	Actor        uuid.UUID        `gorm:"type:uuid;not null;index" json:"actor"`
	AuthorizedBy *uuid.UUID       `gorm:"type:uuid" json:"authorized_by,omitempty"`
	Action       enum.AuditAction `gorm:"size:50;not null;index" json:"action"`
	EntityType   string           `gorm:"size:50;not null;index" json:"entity_type"`
	EntityID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"entity_id"`
	Reason       string           `gorm:"size:255" json:"reason,omitempty"`
	BeforeData   string           `gorm:"type:jsonb" json:"before_data"`
	AfterData    string           `gorm:"type:jsonb" json:"after_data"`
	CreatedAt    time.Time        `json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new audit entry
func (e *AuditEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the AuditEntry model
func (AuditEntry) TableName() string {
	return "audit_entries"
}
