package entity

import (
	"encoding/json"
	"time"

	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WorkPeriod represents a shift: the reconciliation boundary within which
// receipts are created and settled. Exactly one Open period may exist per
// register group at a time. Periods are never deleted.
type WorkPeriod struct {
	ID               uuid.UUID         `gorm:"type:uuid;primary_key" json:"id"`
	RegisterGroup    string            `gorm:"size:100;not null;default:'main';index" json:"register_group"`
	Status           enum.PeriodStatus `gorm:"default:0;index" json:"status"`
	OpenedBy         uuid.UUID         `gorm:"type:uuid;not null" json:"opened_by"`
	OpenedAt         time.Time         `gorm:"not null" json:"opened_at"`
	ClosedBy         *uuid.UUID        `gorm:"type:uuid" json:"closed_by,omitempty"`
	ClosedAt         *time.Time        `json:"closed_at,omitempty"`
	OpeningFloat     int64             `gorm:"not null;default:0" json:"-"` // Stored in cents, excluded from JSON
	ClosingCashCount *int64            `json:"-"`                           // Stored in cents, excluded from JSON
	ExpectedCash     *int64            `json:"-"`                           // Stored in cents, excluded from JSON
	Variance         *int64            `json:"-"`                           // Stored in cents, excluded from JSON
	ZReportNumber    *int64            `json:"z_report_number,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (p WorkPeriod) MarshalJSON() ([]byte, error) {
	type Alias WorkPeriod
	out := &struct {
		Alias
		OpeningFloat     float64  `json:"opening_float"`
		ClosingCashCount *float64 `json:"closing_cash_count,omitempty"`
		ExpectedCash     *float64 `json:"expected_cash,omitempty"`
		Variance         *float64 `json:"variance,omitempty"`
	}{
		Alias:        Alias(p),
		OpeningFloat: float64(p.OpeningFloat) / 100,
	}
	if p.ClosingCashCount != nil {
		v := float64(*p.ClosingCashCount) / 100
		out.ClosingCashCount = &v
	}
	if p.ExpectedCash != nil {
		v := float64(*p.ExpectedCash) / 100
		out.ExpectedCash = &v
	}
	if p.Variance != nil {
		v := float64(*p.Variance) / 100
		out.Variance = &v
	}
	return json.Marshal(out)
}

// BeforeCreate generates a UUID before creating a new work period
func (p *WorkPeriod) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the WorkPeriod model
func (WorkPeriod) TableName() string {
	return "work_periods"
}

// IsOpen reports whether the period still accepts ledger operations
func (p *WorkPeriod) IsOpen() bool {
	return p.Status == enum.PeriodStatusOpen
}

// CashPayout records cash removed from the drawer mid-period (supplier
// payment, banking drop). Payouts reduce the expected cash at close.
type CashPayout struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	WorkPeriodID uuid.UUID `gorm:"type:uuid;not null;index" json:"work_period_id"`
	Amount       int64     `gorm:"not null" json:"-"` // Stored in cents, excluded from JSON
	Reason       string    `gorm:"size:255;not null" json:"reason"`
	RecordedBy   uuid.UUID `gorm:"type:uuid;not null" json:"recorded_by"`
	CreatedAt    time.Time `json:"created_at"`
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (cp CashPayout) MarshalJSON() ([]byte, error) {
	type Alias CashPayout
	return json.Marshal(&struct {
		Alias
		Amount float64 `json:"amount"`
	}{
		Alias:  Alias(cp),
		Amount: float64(cp.Amount) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new payout
func (cp *CashPayout) BeforeCreate(tx *gorm.DB) error {
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the CashPayout model
func (CashPayout) TableName() string {
	return "cash_payouts"
}
