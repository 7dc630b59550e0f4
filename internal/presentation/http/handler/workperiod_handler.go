package handler

import (
	"strconv"

	"github.com/dukasoft/tillpoint-api/internal/application/service"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/dto/request"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/dto/response"
	"github.com/dukasoft/tillpoint-api/pkg/pagination"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WorkPeriodHandler handles work period HTTP requests
type WorkPeriodHandler struct {
	periodService *service.WorkPeriodService
}

// NewWorkPeriodHandler creates a new work period handler
func NewWorkPeriodHandler(periodService *service.WorkPeriodService) *WorkPeriodHandler {
	return &WorkPeriodHandler{periodService: periodService}
}

// Open handles opening a new work period
func (h *WorkPeriodHandler) Open(c *gin.Context) {
	actor := GetActor(c)
	if actor == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	var req request.OpenPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	period, err := h.periodService.Open(c.Request.Context(), *actor, req.RegisterGroup, toCents(req.OpeningFloat))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Work period opened", period)
}

// Close handles closing a work period with cash reconciliation
func (h *WorkPeriodHandler) Close(c *gin.Context) {
	actor := GetActor(c)
	if actor == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	periodID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid work period ID")
		return
	}

	var req request.ClosePeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.periodService.Close(c.Request.Context(), *actor, periodID, toCents(req.ClosingCashCount))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Work period closed", result)
}

// Current returns the open period for a register group
func (h *WorkPeriodHandler) Current(c *gin.Context) {
	period, err := h.periodService.Current(c.Request.Context(), c.Query("register_group"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Current work period retrieved", period)
}

// Get returns one work period by id
func (h *WorkPeriodHandler) Get(c *gin.Context) {
	periodID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid work period ID")
		return
	}

	period, err := h.periodService.Get(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Work period retrieved", period)
}

// List returns work periods newest first
func (h *WorkPeriodHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))
	params := &pagination.PaginationParams{Page: page, PerPage: perPage}
	params.Validate()

	periods, total, err := h.periodService.List(c.Request.Context(), params.PerPage, params.Offset())
	if err != nil {
		response.Error(c, err)
		return
	}

	result := pagination.NewPaginatedResult(periods, pagination.NewPagination(params.Page, params.PerPage, total))
	response.SuccessWithPagination(c, 200, "Work periods retrieved", result)
}

// RecordPayout handles recording a cash payout
func (h *WorkPeriodHandler) RecordPayout(c *gin.Context) {
	actor := GetActor(c)
	if actor == nil {
		response.Unauthorized(c, "User not authenticated")
		return
	}

	periodID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid work period ID")
		return
	}

	var req request.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	payout, err := h.periodService.RecordPayout(c.Request.Context(), *actor, periodID, toCents(req.Amount), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, "Payout recorded", payout)
}

// ListPayouts returns the payouts recorded in a period
func (h *WorkPeriodHandler) ListPayouts(c *gin.Context) {
	periodID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid work period ID")
		return
	}

	payouts, err := h.periodService.Payouts(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Payouts retrieved", payouts)
}
