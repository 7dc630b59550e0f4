package handler

import (
	"strconv"

	"github.com/dukasoft/tillpoint-api/internal/application/service"
	"github.com/dukasoft/tillpoint-api/internal/domain/repository"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/dto/response"
	"github.com/dukasoft/tillpoint-api/pkg/pagination"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditHandler handles audit log HTTP requests
type AuditHandler struct {
	auditService *service.AuditService
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

// List returns audit entries newest first with optional filters
func (h *AuditHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "15"))
	pageParams := &pagination.PaginationParams{Page: page, PerPage: perPage}
	pageParams.Validate()

	params := &repository.AuditFilterParams{
		EntityType: c.Query("entity_type"),
		Limit:      pageParams.PerPage,
		Offset:     pageParams.Offset(),
	}
	if raw := c.Query("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "Invalid entity_id filter")
			return
		}
		params.EntityID = &id
	}
	if raw := c.Query("actor"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(c, "Invalid actor filter")
			return
		}
		params.Actor = &id
	}

	entries, total, err := h.auditService.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	result := pagination.NewPaginatedResult(entries, pagination.NewPagination(pageParams.Page, pageParams.PerPage, total))
	response.SuccessWithPagination(c, 200, "Audit entries retrieved", result)
}
