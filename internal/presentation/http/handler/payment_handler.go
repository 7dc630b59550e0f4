package handler

import (
	"github.com/dukasoft/tillpoint-api/internal/application/service"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/dto/request"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/dto/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PaymentHandler handles the async payment capture lifecycle
type PaymentHandler struct {
	settlementService *service.SettlementService
	ledgerService     *service.LedgerService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(settlementService *service.SettlementService, ledgerService *service.LedgerService) *PaymentHandler {
	return &PaymentHandler{settlementService: settlementService, ledgerService: ledgerService}
}

// InitiateAsync starts an asynchronous electronic capture for a receipt
func (h *PaymentHandler) InitiateAsync(c *gin.Context) {
	actor := GetActor(c)
	if actor == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	receiptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid receipt ID")
		return
	}

	var req request.AsyncPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	detail, err := h.ledgerService.Get(c.Request.Context(), receiptID)
	if err != nil {
		response.Error(c, err)
		return
	}

	payment, err := h.settlementService.InitiateAsync(c.Request.Context(), detail.Receipt,
		enum.PaymentMethod(req.Method), toCents(req.Amount), req.Reference, req.IdempotencyKey)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Payment initiated", payment)
}

// Confirm is the gateway callback for a confirmed capture
func (h *PaymentHandler) Confirm(c *gin.Context) {
	var req request.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.settlementService.OnPaymentConfirmed(c.Request.Context(), req.Reference); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment confirmed", nil)
}

// Fail is the gateway callback for a failed capture
func (h *PaymentHandler) Fail(c *gin.Context) {
	var req request.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.settlementService.OnPaymentFailed(c.Request.Context(), req.Reference); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment marked failed", nil)
}

// Cancel cancels a pending capture before confirmation
func (h *PaymentHandler) Cancel(c *gin.Context) {
	actor := GetActor(c)
	if actor == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req request.PaymentCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.settlementService.CancelPending(c.Request.Context(), req.Reference, *actor); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payment cancelled", nil)
}
