package entity

import (
	"encoding/json"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Receipt is the customer-facing settlement record derived from an order.
// Lineage: children of a split and the result of a merge are new receipts;
// the archived originals point at their successor/parent through
// ParentReceiptID, so the full family is recoverable by id without mutable
// back-references.
type Receipt struct {
	ID              uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	OrderID         uuid.UUID         `gorm:"type:uuid;not null;index" json:"order_id"`
	WorkPeriodID    uuid.UUID         `gorm:"type:uuid;not null;index" json:"work_period_id"`
	OwnerID         uuid.UUID         `gorm:"type:uuid;not null;index" json:"owner_id"`
	State           enum.ReceiptState `gorm:"default:0;index" json:"state"`
	Total           int64             `gorm:"not null;default:0" json:"-"` // Stored in cents, excluded from JSON
	PaidAmount      int64             `gorm:"not null;default:0" json:"-"`
	ChangeGiven     int64             `gorm:"not null;default:0" json:"-"`
	ParentReceiptID *uuid.UUID        `gorm:"type:uuid;index" json:"parent_receipt_id,omitempty"`
	VoidReason      *string           `gorm:"size:255" json:"void_reason,omitempty"`
	VoidedBy        *uuid.UUID        `gorm:"type:uuid" json:"voided_by,omitempty"`
	Version         int               `gorm:"not null;default:1" json:"-"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (r Receipt) MarshalJSON() ([]byte, error) {
	type Alias Receipt
	return json.Marshal(&struct {
		Alias
		Total       float64 `json:"total"`
		PaidAmount  float64 `json:"paid_amount"`
		ChangeGiven float64 `json:"change_given"`
		Balance     float64 `json:"balance"`
	}{
		Alias:       Alias(r),
		Total:       float64(r.Total) / 100,
		PaidAmount:  float64(r.PaidAmount) / 100,
		ChangeGiven: float64(r.ChangeGiven) / 100,
		Balance:     float64(r.Balance()) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new receipt
func (r *Receipt) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Receipt model
func (Receipt) TableName() string {
	return "receipts"
}

// Balance returns the outstanding amount in cents. Never negative: cash
// overpayment becomes ChangeGiven, not a negative balance.
func (r *Receipt) Balance() int64 {
	balance := r.Total - r.PaidAmount
	if balance < 0 {
		return 0
	}
	return balance
}
