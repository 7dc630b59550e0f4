package request

// OpenPeriodRequest represents a work period open request
type OpenPeriodRequest struct {
	RegisterGroup string  `json:"register_group" binding:"omitempty,max=100"`
	OpeningFloat  float64 `json:"opening_float" binding:"min=0"`
}

// ClosePeriodRequest represents a work period close request
type ClosePeriodRequest struct {
	ClosingCashCount float64 `json:"closing_cash_count" binding:"min=0"`
}

// PayoutRequest represents a cash payout request
type PayoutRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
	Reason string  `json:"reason" binding:"required,min=3,max=255"`
}
