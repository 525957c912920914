package service

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/escola-hub/escola-api/internal/models"
	appErrors "github.com/escola-hub/escola-api/pkg/errors"
	"github.com/escola-hub/escola-api/pkg/export"
)

// Export formats supported by the report export endpoint.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type engagementReporter interface {
	CourseEngagement(ctx context.Context) ([]models.CourseEngagement, error)
}

// ExportResult carries rendered bytes plus HTTP presentation hints.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

// ExportService renders the engagement report into downloadable documents.
type ExportService struct {
	reports engagementReporter
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(reports engagementReporter, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		reports: reports,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// EngagementReport renders the current engagement report in the requested
// format.
func (s *ExportService) EngagementReport(ctx context.Context, format string) (*ExportResult, error) {
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	report, err := s.reports.CourseEngagement(ctx)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"Course", "Total Enrolled", "Average Age", "Recent Enrollments (30d)"},
		Rows:    make([][]string, 0, len(report)),
	}
	for _, row := range report {
		dataset.Rows = append(dataset.Rows, []string{
			row.CourseName,
			strconv.FormatInt(row.TotalEnrolled, 10),
			strconv.FormatFloat(row.AverageAge, 'f', 2, 64),
			strconv.FormatInt(row.RecentEnrollments, 10),
		})
	}

	switch format {
	case ExportFormatCSV:
		content, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return &ExportResult{Content: content, ContentType: "text/csv", Filename: "course-engagement.csv"}, nil
	default:
		content, err := s.pdf.Render(dataset, "Course Engagement Report")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return &ExportResult{Content: content, ContentType: "application/pdf", Filename: "course-engagement.pdf"}, nil
	}
}
