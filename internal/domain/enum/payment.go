package enum

// PaymentMethod identifies how a payment was tendered
type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodMpesa PaymentMethod = "mpesa"
	PaymentMethodCard  PaymentMethod = "card"
)

// IsCash reports whether overpayment yields change. Only cash tenders do;
// electronic tenders are captured for the exact amount.
func (m PaymentMethod) IsCash() bool {
	return m == PaymentMethodCash
}

// IsValid reports whether the method is one of the known tender types.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMpesa, PaymentMethodCard:
		return true
	}
	return false
}

// PaymentStatus tracks the capture lifecycle of a payment
type PaymentStatus string

const (
	// PaymentStatusCaptured means the amount is confirmed and counts towards the balance.
	PaymentStatusCaptured PaymentStatus = "captured"
	// PaymentStatusPending means an async capture was initiated but not yet confirmed.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCancelled means a pending capture was cancelled before confirmation.
	PaymentStatusCancelled PaymentStatus = "cancelled"
	// PaymentStatusFailed means the gateway reported a capture failure.
	PaymentStatusFailed PaymentStatus = "failed"
)
