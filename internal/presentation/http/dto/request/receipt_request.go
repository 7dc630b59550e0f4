package request

import "github.com/google/uuid"

// ItemRequest is one order line in a create or add-items call. Amounts are
// decimal currency, converted to cents at the handler boundary.
type ItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
	Discount  float64   `json:"discount" binding:"min=0"`
}

// CreateReceiptRequest represents a receipt creation request
type CreateReceiptRequest struct {
	RegisterGroup string        `json:"register_group" binding:"omitempty,max=100"`
	Items         []ItemRequest `json:"items" binding:"required,min=1,dive"`
}

// AddItemsRequest represents an add-items request
type AddItemsRequest struct {
	Items         []ItemRequest `json:"items" binding:"required,min=1,dive"`
	OverrideToken string        `json:"override_token"`
}

// PaymentRequest is one tender in a settle call
type PaymentRequest struct {
	Method         string  `json:"method" binding:"required,oneof=cash mpesa card"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	Reference      *string `json:"reference"`
	IdempotencyKey string  `json:"idempotency_key" binding:"required,max=255"`
}

// SettleRequest represents a settlement request
type SettleRequest struct {
	Payments      []PaymentRequest `json:"payments" binding:"required,min=1,dive"`
	OverrideToken string           `json:"override_token"`
}

// VoidRequest represents a void request
type VoidRequest struct {
	Reason        string `json:"reason" binding:"required,min=3,max=255"`
	OverrideToken string `json:"override_token"`
}

// SplitRequest represents a split request. Provide either parts for an
// equal split or item_assignments (item id -> target index) for a by-item
// split.
type SplitRequest struct {
	Parts           int            `json:"parts" binding:"omitempty,min=2"`
	ItemAssignments map[string]int `json:"item_assignments"`
	OverrideToken   string         `json:"override_token"`
}

// MergeRequest represents a merge request
type MergeRequest struct {
	ReceiptIDs []uuid.UUID `json:"receipt_ids" binding:"required,min=2"`
}

// OverrideRequest represents an override grant request
type OverrideRequest struct {
	Action             string `json:"action" binding:"required"`
	AuthorizerEmail    string `json:"authorizer_email" binding:"required,email"`
	AuthorizerPassword string `json:"authorizer_password" binding:"required"`
}

// AsyncPaymentRequest starts an asynchronous electronic capture
type AsyncPaymentRequest struct {
	Method         string  `json:"method" binding:"required,oneof=mpesa card"`
	Amount         float64 `json:"amount" binding:"required,gt=0"`
	Reference      string  `json:"reference" binding:"required,max=255"`
	IdempotencyKey string  `json:"idempotency_key" binding:"required,max=255"`
}

// PaymentCallbackRequest is the gateway confirmation/failure callback body
type PaymentCallbackRequest struct {
	Reference string `json:"reference" binding:"required,max=255"`
}
