package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OverrideGrant is a single-use token letting a non-owner perform one ledger
// call on a receipt. Granted by a user with a higher permission rank than the
// action requires, consumed by exactly one subsequent call.
type OverrideGrant struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key" json:"id"`
	Token        string     `gorm:"size:64;uniqueIndex;not null" json:"token"`
	ReceiptID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"receipt_id"`
	Action       string     `gorm:"size:50;not null" json:"action"`
	RequestedBy  uuid.UUID  `gorm:"type:uuid;not null" json:"requested_by"`
	AuthorizedBy uuid.UUID  `gorm:"type:uuid;not null" json:"authorized_by"`
	Consumed     bool       `gorm:"not null;default:false" json:"consumed"`
	ConsumedAt   *time.Time `json:"consumed_at,omitempty"`
	ExpiresAt    time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// BeforeCreate generates a UUID before creating a new grant
func (g *OverrideGrant) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the OverrideGrant model
func (OverrideGrant) TableName() string {
	return "override_grants"
}

// IsExpired checks if the grant has expired
func (g *OverrideGrant) IsExpired() bool {
	return time.Now().After(g.ExpiresAt)
}
