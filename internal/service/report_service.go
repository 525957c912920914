package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/escola-hub/escola-api/internal/models"
	appErrors "github.com/escola-hub/escola-api/pkg/errors"
)

const engagementCacheKey = "report:course-engagement"

// recentWindowDays is the trailing window for the "recent enrollments"
// column. The window is half-open: today counts, the boundary day exactly
// recentWindowDays ago does not.
const recentWindowDays = 30

type courseLister interface {
	List(ctx context.Context) ([]models.Course, error)
}

type courseEnrollmentSampler interface {
	ListByCourseWithStudents(ctx context.Context, courseID int64) ([]models.CourseEnrollmentSample, error)
}

// ReportService computes read-only per-course engagement aggregates. It takes
// no locks and mutates nothing.
type ReportService struct {
	courses     courseLister
	enrollments courseEnrollmentSampler
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	cacheTTL    time.Duration
	now         func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(courses courseLister, enrollments courseEnrollmentSampler, cache *CacheService, metrics *MetricsService, cacheTTL time.Duration, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		courses:     courses,
		enrollments: enrollments,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cacheTTL:    cacheTTL,
		now:         time.Now,
	}
}

// CourseEngagement returns one row per existing course, in course-listing
// order. Cancelled enrollments count toward every aggregate; the report is a
// view over history, not over the active roster.
func (s *ReportService) CourseEngagement(ctx context.Context) ([]models.CourseEngagement, error) {
	if s.cache != nil {
		var cached []models.CourseEngagement
		if hit, _ := s.cache.Get(ctx, engagementCacheKey, &cached); hit {
			return cached, nil
		}
	}

	start := time.Now()
	report, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveReportGeneration(time.Since(start))
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, engagementCacheKey, report, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache engagement report", zap.Error(err))
		}
	}
	return report, nil
}

func (s *ReportService) compute(ctx context.Context) ([]models.CourseEngagement, error) {
	courses, err := s.courses.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	today := dateOf(s.now())
	recentLimit := today.AddDate(0, 0, -recentWindowDays)

	report := make([]models.CourseEngagement, 0, len(courses))
	for _, course := range courses {
		samples, err := s.enrollments.ListByCourseWithStudents(ctx, course.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course enrollments")
		}

		total := int64(len(samples))
		var ageSum int64
		var recent int64
		for _, sample := range samples {
			ageSum += int64(models.AgeAt(sample.StudentBirthDate, today))
			if dateOf(sample.EnrolledAt).After(recentLimit) {
				recent++
			}
		}

		averageAge := 0.0
		if total > 0 {
			averageAge = float64(ageSum) / float64(total)
		}

		report = append(report, models.CourseEngagement{
			CourseName:        course.Name,
			TotalEnrolled:     total,
			AverageAge:        averageAge,
			RecentEnrollments: recent,
		})
	}
	return report, nil
}

// dateOf strips the time of day so window comparisons are calendar based.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
