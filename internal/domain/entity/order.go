package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Order is the sequence of items a receipt settles. An order belongs to
// exactly one work period and is owned by the user who opened it. Items are
// grouped into batches: each AddItems call increments LastBatch so kitchen
// tickets only ever print the newest wave.
type Order struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	WorkPeriodID uuid.UUID `gorm:"type:uuid;not null;index" json:"work_period_id"`
	OwnerID      uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	LastBatch    int       `gorm:"not null;default:0" json:"last_batch"`
	// StockDeducted marks that stock for this order's items has already been
	// taken. Split children share one order, so the claim lives here rather
	// than on the receipt.
	StockDeducted bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// BeforeCreate generates a UUID before creating a new order
func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// ActiveItems returns the non-voided items of the order.
func (o *Order) ActiveItems() []OrderItem {
	items := make([]OrderItem, 0, len(o.Items))
	for _, it := range o.Items {
		if !it.Voided {
			items = append(items, it)
		}
	}
	return items
}

// ActiveTotal sums the non-voided item totals in cents.
func (o *Order) ActiveTotal() int64 {
	var total int64
	for _, it := range o.Items {
		if !it.Voided {
			total += it.LineTotal()
		}
	}
	return total
}

// OrderItem represents one line of an order. Category is denormalized from
// the product at add time so report aggregation does not depend on the
// catalog's later state.
type OrderItem struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	OrderID     uuid.UUID `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID   uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Category    string    `gorm:"size:100;index" json:"category"`
	Quantity    int       `gorm:"not null" json:"quantity"`
	UnitPrice   int64     `gorm:"not null" json:"-"` // Stored in cents, excluded from JSON
	Discount    int64     `gorm:"not null;default:0" json:"-"`
	Tax         int64     `gorm:"not null;default:0" json:"-"`
	BatchNumber int       `gorm:"not null;default:1" json:"batch_number"`
	Voided      bool      `gorm:"not null;default:false" json:"voided"`
	CreatedAt   time.Time `json:"created_at"`
}

// LineTotal returns quantity*unitPrice - discount + tax in cents.
func (it *OrderItem) LineTotal() int64 {
	return it.UnitPrice*int64(it.Quantity) - it.Discount + it.Tax
}

// MarshalJSON custom marshaler to convert cents to decimal for API responses
func (it OrderItem) MarshalJSON() ([]byte, error) {
	type Alias OrderItem
	return json.Marshal(&struct {
		Alias
		UnitPrice float64 `json:"unit_price"`
		Discount  float64 `json:"discount"`
		Tax       float64 `json:"tax"`
		Total     float64 `json:"total"`
	}{
		Alias:     Alias(it),
		UnitPrice: float64(it.UnitPrice) / 100,
		Discount:  float64(it.Discount) / 100,
		Tax:       float64(it.Tax) / 100,
		Total:     float64(it.LineTotal()) / 100,
	})
}

// BeforeCreate generates a UUID before creating a new order item
func (it *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	return nil
}

// TableName returns the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}
