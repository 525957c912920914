package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/escola-hub/escola-api/internal/models"
)

type mockCourseLister struct {
	courses []models.Course
}

func (m *mockCourseLister) List(ctx context.Context) ([]models.Course, error) {
	return m.courses, nil
}

type mockEnrollmentSampler struct {
	samples map[int64][]models.CourseEnrollmentSample
}

func (m *mockEnrollmentSampler) ListByCourseWithStudents(ctx context.Context, courseID int64) ([]models.CourseEnrollmentSample, error) {
	return m.samples[courseID], nil
}

var reportToday = time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)

// Birth dates come out of a DATE column, so fixtures use midnight values.
func yearsAgo(n int) time.Time {
	return dateOf(reportToday).AddDate(-n, 0, 0)
}

func newReportFixture(courses []models.Course, samples map[int64][]models.CourseEnrollmentSample) *ReportService {
	svc := NewReportService(&mockCourseLister{courses: courses}, &mockEnrollmentSampler{samples: samples}, nil, nil, 0, zap.NewNop())
	svc.now = func() time.Time { return reportToday }
	return svc
}

func TestReportServiceEmptyCourse(t *testing.T) {
	svc := newReportFixture(
		[]models.Course{{ID: 1, Name: "Algorithms"}},
		nil,
	)

	report, err := svc.CourseEngagement(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, "Algorithms", report[0].CourseName)
	assert.Equal(t, int64(0), report[0].TotalEnrolled)
	assert.Equal(t, 0.0, report[0].AverageAge)
	assert.Equal(t, int64(0), report[0].RecentEnrollments)
}

func TestReportServiceRecentWindowBoundary(t *testing.T) {
	birth := yearsAgo(25)
	svc := newReportFixture(
		[]models.Course{{ID: 1, Name: "Databases"}},
		map[int64][]models.CourseEnrollmentSample{
			1: {
				// Exactly 30 days ago falls outside the window.
				{EnrolledAt: reportToday.AddDate(0, 0, -30), StudentBirthDate: birth},
				// 29 days ago is inside.
				{EnrolledAt: reportToday.AddDate(0, 0, -29), StudentBirthDate: birth},
				// Today is inside.
				{EnrolledAt: reportToday, StudentBirthDate: birth},
			},
		},
	)

	report, err := svc.CourseEngagement(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, int64(3), report[0].TotalEnrolled)
	assert.Equal(t, int64(2), report[0].RecentEnrollments)
}

func TestReportServiceStudentCountedPerCourse(t *testing.T) {
	// One 20-year-old student enrolled in course X today and in course Y
	// 40 days ago.
	birth := yearsAgo(20)
	svc := newReportFixture(
		[]models.Course{{ID: 1, Name: "X"}, {ID: 2, Name: "Y"}},
		map[int64][]models.CourseEnrollmentSample{
			1: {{EnrolledAt: reportToday, StudentBirthDate: birth}},
			2: {{EnrolledAt: reportToday.AddDate(0, 0, -40), StudentBirthDate: birth}},
		},
	)

	report, err := svc.CourseEngagement(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 2)

	assert.Equal(t, "X", report[0].CourseName)
	assert.Equal(t, int64(1), report[0].TotalEnrolled)
	assert.Equal(t, 20.0, report[0].AverageAge)
	assert.Equal(t, int64(1), report[0].RecentEnrollments)

	assert.Equal(t, "Y", report[1].CourseName)
	assert.Equal(t, int64(1), report[1].TotalEnrolled)
	assert.Equal(t, 20.0, report[1].AverageAge)
	assert.Equal(t, int64(0), report[1].RecentEnrollments)
}

func TestReportServiceAverageAge(t *testing.T) {
	svc := newReportFixture(
		[]models.Course{{ID: 1, Name: "Networks"}},
		map[int64][]models.CourseEnrollmentSample{
			1: {
				{EnrolledAt: reportToday, StudentBirthDate: yearsAgo(20)},
				{EnrolledAt: reportToday, StudentBirthDate: yearsAgo(21)},
			},
		},
	)

	report, err := svc.CourseEngagement(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.InDelta(t, 20.5, report[0].AverageAge, 1e-9)
}

func TestReportServiceIncludesCancelledEnrollments(t *testing.T) {
	birth := yearsAgo(30)
	svc := newReportFixture(
		[]models.Course{{ID: 1, Name: "Compilers"}},
		map[int64][]models.CourseEnrollmentSample{
			1: {
				{EnrolledAt: reportToday, StudentBirthDate: birth, Cancelled: false},
				{EnrolledAt: reportToday, StudentBirthDate: birth, Cancelled: true},
			},
		},
	)

	report, err := svc.CourseEngagement(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, int64(2), report[0].TotalEnrolled)
	assert.Equal(t, int64(2), report[0].RecentEnrollments)
}

func TestReportServicePreservesCourseOrder(t *testing.T) {
	svc := newReportFixture(
		[]models.Course{{ID: 3, Name: "C"}, {ID: 1, Name: "A"}, {ID: 2, Name: "B"}},
		nil,
	)

	report, err := svc.CourseEngagement(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 3)
	assert.Equal(t, "C", report[0].CourseName)
	assert.Equal(t, "A", report[1].CourseName)
	assert.Equal(t, "B", report[2].CourseName)
}
