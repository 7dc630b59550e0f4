package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReportSnapshot is a frozen Z report. The unique index on WorkPeriodID makes
// the once-per-period rule a database guarantee, and ReportNumber comes from
// the durable z_sequences counter so numbers increase with no gaps.
type ReportSnapshot struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	WorkPeriodID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"work_period_id"`
	ReportNumber int64     `gorm:"uniqueIndex;not null" json:"report_number"`
	Payload      string    `gorm:"type:jsonb;not null" json:"payload"`
	GeneratedBy  uuid.UUID `gorm:"type:uuid;not null" json:"generated_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new snapshot
func (s *ReportSnapshot) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the ReportSnapshot model
func (ReportSnapshot) TableName() string {
	return "report_snapshots"
}

// ZSequence is the single-row durable counter behind Z report numbers.
type ZSequence struct {
	ID    int   `gorm:"primary_key" json:"id"`
	Value int64 `gorm:"not null;default:0" json:"value"`
}

// TableName returns the table name for the ZSequence model
func (ZSequence) TableName() string {
	return "z_sequences"
}
