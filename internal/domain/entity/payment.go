package entity

import (
	"encoding/json"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment records one tender applied against a receipt. The idempotency key
// is unique: replaying the same key returns the original payment instead of
// applying the amount twice (client retry after a timeout).
type Payment struct {
	ID             uuid.UUID          `gorm:"type:uuid;primary_key" json:"id"`
	ReceiptID      uuid.UUID          `gorm:"type:uuid;not null;index" json:"receipt_id"`
	WorkPeriodID   uuid.UUID          `gorm:"type:uuid;not null;index" json:"work_period_id"`
	Method         enum.PaymentMethod `gorm:"size:20;not null" json:"method"`
	Amount         int64              `gorm:"not null" json:"-"` // Stored in cents, excluded from JSON
	Reference      *string            `gorm:"size:255" json:"reference,omitempty"`
	IdempotencyKey string             `gorm:"size:255;uniqueIndex;not null" json:"idempotency_key"`
	Status         enum.PaymentStatus `gorm:"size:20;not null;default:'captured'" json:"status"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (p Payment) MarshalJSON() ([]byte, error) {
	type Alias Payment
	return json.Marshal(&struct {
		Alias
		Amount float64 `json:"amount"`
	}{
		Alias:  Alias(p),
		Amount: float64(p.Amount) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new payment
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Payment model
func (Payment) TableName() string {
	return "payments"
}
