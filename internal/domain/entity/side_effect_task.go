package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SideEffectStatus is the processing state of a queued side effect
type SideEffectStatus string

const (
	SideEffectStatusPending    SideEffectStatus = "PENDING"
	SideEffectStatusProcessing SideEffectStatus = "PROCESSING"
	SideEffectStatusDone       SideEffectStatus = "DONE"
	SideEffectStatusDead       SideEffectStatus = "DEAD"
)

// Side effect kinds dispatched after a ledger transition commits.
const (
	SideEffectPrintTicket  = "print_ticket"
	SideEffectPrintReceipt = "print_receipt"
	SideEffectNotify       = "notify"
)

// SideEffectTask is a persisted post-commit side effect (printing, external
// notification). Tasks are retried with exponential backoff and marked DEAD
// after the attempt budget; their failure never rolls back the committed
// ledger state.
type SideEffectTask struct {
	ID            uuid.UUID        `gorm:"type:uuid;primary_key" json:"id"`
	Kind          string           `gorm:"size:50;not null;index" json:"kind"`
	ReceiptID     uuid.UUID        `gorm:"type:uuid;not null;index" json:"receipt_id"`
	Payload       string           `gorm:"type:jsonb" json:"payload"`
	Status        SideEffectStatus `gorm:"size:20;not null;default:'PENDING';index" json:"status"`
	Attempts      int              `gorm:"not null;default:0" json:"attempts"`
	NextAttemptAt time.Time        `gorm:"not null;index" json:"next_attempt_at"`
	LastError     string           `gorm:"size:500" json:"last_error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// BeforeCreate generates a UUID before creating a new task
func (t *SideEffectTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the SideEffectTask model
func (SideEffectTask) TableName() string {
	return "side_effect_tasks"
}
