package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/escola-hub/escola-api/internal/models"
	"github.com/escola-hub/escola-api/internal/service"
	"github.com/escola-hub/escola-api/pkg/response"
)

type reportService interface {
	CourseEngagement(ctx context.Context) ([]models.CourseEngagement, error)
}

type exportService interface {
	EngagementReport(ctx context.Context, format string) (*service.ExportResult, error)
}

// ReportHandler exposes reporting endpoints.
type ReportHandler struct {
	reports reportService
	exports exportService
}

// NewReportHandler constructs ReportHandler. The export service may be nil
// when report export is disabled.
func NewReportHandler(reports reportService, exports exportService) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports}
}

// Engagement godoc
// @Summary Per-course engagement report
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/engagement [get]
func (h *ReportHandler) Engagement(c *gin.Context) {
	report, err := h.reports.CourseEngagement(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Export godoc
// @Summary Download the engagement report as CSV or PDF
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /reports/engagement/export [get]
func (h *ReportHandler) Export(c *gin.Context) {
	result, err := h.exports.EngagementReport(c.Request.Context(), c.DefaultQuery("format", service.ExportFormatCSV))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Content)
}
