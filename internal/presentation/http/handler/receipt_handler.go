package handler

import (
	"strconv"

	"github.com/dukasoft/tillpoint-api/internal/application/service"
	"github.com/dukasoft/tillpoint-api/internal/domain/enum"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/dto/request"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/dto/response"
	"github.com/dukasoft/tillpoint-api/pkg/pagination"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReceiptHandler handles receipt ledger HTTP requests
type ReceiptHandler struct {
	ledgerService *service.LedgerService
	guardService  *service.GuardService
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(ledgerService *service.LedgerService, guardService *service.GuardService) *ReceiptHandler {
	return &ReceiptHandler{ledgerService: ledgerService, guardService: guardService}
}

// Create handles receipt creation
func (h *ReceiptHandler) Create(c *gin.Context) {
	actor := GetActor(c)
	if actor == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req request.CreateReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	receipt, err := h.ledgerService.Create(c.Request.Context(), *actor, req.RegisterGroup, toItemInputs(req.Items))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Receipt created", receipt)
}

// AddItems handles appending an item batch to a receipt
func (h *ReceiptHandler) AddItems(c *gin.Context) {
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

	var req request.AddItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	items, err := h.ledgerService.AddItems(c.Request.Context(), *actor, receiptID, toItemInputs(req.Items), req.OverrideToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Items added", gin.H{"items": items})
}

// Settle handles settling a receipt with one or more tenders
func (h *ReceiptHandler) Settle(c *gin.Context) {
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

	var req request.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	payments := make([]service.PaymentInput, len(req.Payments))
	for i, p := range req.Payments {
		payments[i] = service.PaymentInput{
			Method:         enum.PaymentMethod(p.Method),
			Amount:         toCents(p.Amount),
			Reference:      p.Reference,
			IdempotencyKey: p.IdempotencyKey,
		}
	}

	receipt, err := h.ledgerService.Settle(c.Request.Context(), *actor, receiptID, payments, req.OverrideToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Receipt settled", receipt)
}

// Void handles voiding a receipt
func (h *ReceiptHandler) Void(c *gin.Context) {
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

	var req request.VoidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	receipt, err := h.ledgerService.Void(c.Request.Context(), *actor, receiptID, req.Reason, req.OverrideToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Receipt voided", receipt)
}

// Split handles splitting a receipt by items or into equal parts
func (h *ReceiptHandler) Split(c *gin.Context) {
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

	var req request.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	alloc := service.SplitAllocation{Parts: req.Parts}
	if len(req.ItemAssignments) > 0 {
		alloc.ItemAssignments = make(map[uuid.UUID]int, len(req.ItemAssignments))
		for key, target := range req.ItemAssignments {
			itemID, err := uuid.Parse(key)
			if err != nil {
				response.BadRequest(c, "Invalid item ID "+key)
				return
			}
			alloc.ItemAssignments[itemID] = target
		}
	}

	children, err := h.ledgerService.Split(c.Request.Context(), *actor, receiptID, alloc, req.OverrideToken)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Receipt split", gin.H{"receipts": children})
}

// Merge handles merging receipts into one
func (h *ReceiptHandler) Merge(c *gin.Context) {
	actor := GetActor(c)
	if actor == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req request.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	merged, err := h.ledgerService.Merge(c.Request.Context(), *actor, req.ReceiptIDs)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Receipts merged", merged)
}

// Get returns one receipt with its order, payments and lineage
func (h *ReceiptHandler) Get(c *gin.Context) {
	receiptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid receipt ID")
		return
	}

	detail, err := h.ledgerService.Get(c.Request.Context(), receiptID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Receipt retrieved", detail)
}

// List returns receipts for a work period, optionally filtered by state
func (h *ReceiptHandler) List(c *gin.Context) {
	periodID, err := uuid.Parse(c.Query("work_period_id"))
	if err != nil {
		response.BadRequest(c, "work_period_id query parameter is required")
		return
	}

	var states []enum.ReceiptState
	if state := c.Query("state"); state != "" {
		var s enum.ReceiptState
		if err := s.UnmarshalJSON([]byte(strconv.Quote(state))); err != nil {
			response.BadRequest(c, "Invalid state filter")
			return
		}
		states = append(states, s)
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))
	params := &pagination.PaginationParams{Page: page, PerPage: perPage}
	params.Validate()

	receipts, total, err := h.ledgerService.List(c.Request.Context(), periodID, states, params.PerPage, params.Offset())
	if err != nil {
		response.Error(c, err)
		return
	}

	result := pagination.NewPaginatedResult(receipts, pagination.NewPagination(params.Page, params.PerPage, total))
	response.SuccessWithPagination(c, 200, "Receipts retrieved", result)
}

// RequestOverride handles issuing a single-use override grant for a receipt
func (h *ReceiptHandler) RequestOverride(c *gin.Context) {
	userID := GetUserID(c)
	if userID == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	receiptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid receipt ID")
		return
	}

	var req request.OverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	detail, err := h.ledgerService.Get(c.Request.Context(), receiptID)
	if err != nil {
		response.Error(c, err)
		return
	}

	grant, err := h.guardService.RequestOverride(c.Request.Context(), detail.Receipt, *userID, req.Action, req.AuthorizerEmail, req.AuthorizerPassword)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Override granted", grant)
}

func toItemInputs(items []request.ItemRequest) []service.ItemInput {
	inputs := make([]service.ItemInput, len(items))
	for i, item := range items {
		inputs[i] = service.ItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Discount:  toCents(item.Discount),
		}
	}
	return inputs
}
