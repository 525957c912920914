package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escola-hub/escola-api/internal/models"
	"github.com/escola-hub/escola-api/internal/service"
	appErrors "github.com/escola-hub/escola-api/pkg/errors"
)

type reportServiceMock struct {
	report []models.CourseEngagement
	err    error
}

func (m *reportServiceMock) CourseEngagement(ctx context.Context) ([]models.CourseEngagement, error) {
	return m.report, m.err
}

type exportServiceMock struct {
	result     *service.ExportResult
	err        error
	lastFormat string
}

func (m *exportServiceMock) EngagementReport(ctx context.Context, format string) (*service.ExportResult, error) {
	m.lastFormat = format
	return m.result, m.err
}

func TestReportHandlerEngagement(t *testing.T) {
	mockSvc := &reportServiceMock{report: []models.CourseEngagement{
		{CourseName: "Algorithms", TotalEnrolled: 2, AverageAge: 21.5, RecentEnrollments: 1},
	}}
	h := NewReportHandler(mockSvc, &exportServiceMock{})

	c, w := testContext(t, http.MethodGet, "/reports/engagement", nil)
	h.Engagement(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data []models.CourseEngagement `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, int64(2), envelope.Data[0].TotalEnrolled)
}

func TestReportHandlerEngagementError(t *testing.T) {
	mockSvc := &reportServiceMock{err: appErrors.ErrInternal}
	h := NewReportHandler(mockSvc, &exportServiceMock{})

	c, w := testContext(t, http.MethodGet, "/reports/engagement", nil)
	h.Engagement(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestReportHandlerExportDefaultsToCSV(t *testing.T) {
	mockExport := &exportServiceMock{result: &service.ExportResult{
		Content:     []byte("Course,Total Enrolled\n"),
		ContentType: "text/csv",
		Filename:    "course-engagement.csv",
	}}
	h := NewReportHandler(&reportServiceMock{}, mockExport)

	c, w := testContext(t, http.MethodGet, "/reports/engagement/export", nil)
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.ExportFormatCSV, mockExport.lastFormat)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "course-engagement.csv")
}

func TestReportHandlerExportUnsupportedFormat(t *testing.T) {
	mockExport := &exportServiceMock{err: appErrors.Clone(appErrors.ErrValidation, `unsupported export format "xlsx"`)}
	h := NewReportHandler(&reportServiceMock{}, mockExport)

	c, w := testContext(t, http.MethodGet, "/reports/engagement/export?format=xlsx", nil)
	h.Export(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "xlsx", mockExport.lastFormat)
}
