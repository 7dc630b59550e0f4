package request

// CreateProductRequest represents a catalog entry creation request
type CreateProductRequest struct {
	Name     string  `json:"name" binding:"required,min=2,max=255"`
	Code     string  `json:"code" binding:"required,min=1,max=100"`
	Category string  `json:"category" binding:"omitempty,max=100"`
	Price    float64 `json:"price" binding:"min=0"`
	Quantity int     `json:"quantity" binding:"min=0"`
}
