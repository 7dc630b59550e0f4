package apperror

import (
	"errors"
	"net/http"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

// Common errors
var (
	ErrNotFound           = &AppError{Code: http.StatusNotFound, Message: "Resource not found"}
	ErrUnauthorized       = &AppError{Code: http.StatusUnauthorized, Message: "Unauthorized"}
	ErrForbidden          = &AppError{Code: http.StatusForbidden, Message: "Forbidden"}
	ErrBadRequest         = &AppError{Code: http.StatusBadRequest, Message: "Bad request"}
	ErrInternalServer     = &AppError{Code: http.StatusInternalServerError, Message: "Internal server error"}
	ErrInvalidCredentials = &AppError{Code: http.StatusUnauthorized, Message: "Invalid email or password"}
	ErrTokenExpired       = &AppError{Code: http.StatusUnauthorized, Message: "Token has expired"}
	ErrInvalidToken       = &AppError{Code: http.StatusUnauthorized, Message: "Invalid token"}
)

// Ledger errors. State conflicts map to 409, authorization failures to 403,
// collaborator outages to 503. ErrPeriodBusy and ErrVersionConflict are
// retryable; the rest are not.
var (
	ErrAlreadyOpen         = &AppError{Code: http.StatusConflict, Message: "A work period is already open"}
	ErrAlreadyClosed       = &AppError{Code: http.StatusConflict, Message: "Work period is already closed"}
	ErrUnsettledReceipts   = &AppError{Code: http.StatusConflict, Message: "Work period has unsettled receipts"}
	ErrPeriodBusy          = &AppError{Code: http.StatusConflict, Message: "Work period is busy, retry the close"}
	ErrInsufficientPayment = &AppError{Code: http.StatusBadRequest, Message: "Payments do not cover the receipt balance"}
	ErrInvalidAllocation   = &AppError{Code: http.StatusBadRequest, Message: "Split allocation must assign every item exactly once"}
	ErrAlreadyGenerated    = &AppError{Code: http.StatusConflict, Message: "Z report already generated for this period"}
	ErrVersionConflict     = &AppError{Code: http.StatusConflict, Message: "Entity was modified concurrently"}
)

// NewAppError creates a new application error
func NewAppError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a validation error from field errors
func NewValidationError(fieldErrors []FieldError) *AppError {
	return &AppError{
		Code:    http.StatusUnprocessableEntity,
		Message: "Validation failed",
		Errors:  fieldErrors,
	}
}

// NewNotFoundError creates a not found error with a custom message
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: resource + " not found",
	}
}

// NewBadRequestError creates a bad request error with a custom message
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
	}
}

// NewStateConflictError signals an operation that is not valid for the
// entity's current state, e.g. settling a voided receipt.
func NewStateConflictError(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Message: message,
	}
}

// NewAuthorizationDeniedError signals a missing ownership match or override grant.
func NewAuthorizationDeniedError(message string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Message: message,
	}
}

// NewResourceUnavailableError signals an unreachable collaborator.
func NewResourceUnavailableError(message string) *AppError {
	return &AppError{
		Code:    http.StatusServiceUnavailable,
		Message: message,
	}
}

// IsVersionConflict reports whether err is the retryable optimistic-lock failure.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError converts an error to AppError if possible
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:    http.StatusInternalServerError,
		Message: err.Error(),
	}
}
