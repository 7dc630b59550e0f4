package handler

import (
	"github.com/dukasoft/tillpoint-api/internal/application/service"
	"github.com/dukasoft/tillpoint-api/internal/presentation/http/dto/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReportHandler handles X/Z report HTTP requests
type ReportHandler struct {
	reportService *service.ReportService
}

// NewReportHandler creates a new report handler
func NewReportHandler(reportService *service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

// XReport returns the live period aggregates
func (h *ReportHandler) XReport(c *gin.Context) {
	periodID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid work period ID")
		return
	}

	report, err := h.reportService.XReport(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "X report generated", report)
}

// ZReport returns the frozen close-of-period snapshot
func (h *ReportHandler) ZReport(c *gin.Context) {
	periodID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "Invalid work period ID")
		return
	}

	snapshot, err := h.reportService.GetZ(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "Z report retrieved", snapshot)
}
