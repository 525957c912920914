package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/escola-hub/escola-api/internal/models"
	"github.com/escola-hub/escola-api/internal/repository"
	appErrors "github.com/escola-hub/escola-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[int64]models.Enrollment
	details     map[int64]models.EnrollmentDetail
	nextID      int64
	createErr   error
	created     *models.Enrollment
	updated     *models.Enrollment
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	var list []models.Enrollment
	for _, e := range m.enrollments {
		list = append(list, e)
	}
	return list, nil
}

func (m *mockEnrollmentRepo) ListDetails(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	var list []models.EnrollmentDetail
	for _, d := range m.details {
		list = append(list, d)
	}
	return list, nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	if d, ok := m.details[id]; ok {
		return &d, nil
	}
	if e, ok := m.enrollments[id]; ok {
		return &models.EnrollmentDetail{Enrollment: e}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) ExistsActive(ctx context.Context, studentID, courseID, excludeID int64) (bool, error) {
	for _, e := range m.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && !e.Cancelled && e.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.enrollments == nil {
		m.enrollments = make(map[int64]models.Enrollment)
	}
	m.nextID++
	enrollment.ID = m.nextID
	m.enrollments[enrollment.ID] = *enrollment
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	m.enrollments[enrollment.ID] = *enrollment
	m.updated = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Cancel(ctx context.Context, id int64) (bool, error) {
	e, ok := m.enrollments[id]
	if !ok || e.Cancelled {
		return false, nil
	}
	e.Cancelled = true
	m.enrollments[id] = e
	return true, nil
}

func (m *mockEnrollmentRepo) Delete(ctx context.Context, id int64) (bool, error) {
	if _, ok := m.enrollments[id]; !ok {
		return false, nil
	}
	delete(m.enrollments, id)
	return true, nil
}

type mockStudentReader struct {
	students map[int64]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockCourseReader struct {
	courses map[int64]*models.Course
}

func (m *mockCourseReader) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

func newEnrollmentFixture(repo *mockEnrollmentRepo) *EnrollmentService {
	students := &mockStudentReader{students: map[int64]*models.Student{
		1: {ID: 1, FullName: "Ana Souza", Email: "ana@example.com"},
	}}
	courses := &mockCourseReader{courses: map[int64]*models.Course{
		1: {ID: 1, Name: "Algorithms"},
		2: {ID: 2, Name: "Databases"},
	}}
	return NewEnrollmentService(repo, students, courses, nil, validator.New(), zap.NewNop())
}

func TestEnrollmentServiceEnroll(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 1, CourseID: 1})
	require.NoError(t, err)
	require.NotNil(t, detail)
	require.NotNil(t, repo.created)
	assert.False(t, repo.created.Cancelled)
	assert.False(t, repo.created.EnrolledAt.IsZero())
}

func TestEnrollmentServiceEnrollValidatesPayload(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollStudentNotFound(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 99, CourseID: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceEnrollDuplicateActive(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[int64]models.Enrollment{
		10: {ID: 10, StudentID: 1, CourseID: 1, EnrolledAt: time.Now(), Cancelled: false},
	}, nextID: 10}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 1, CourseID: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOperation.Code, appErrors.FromError(err).Code)

	// The original enrollment is untouched.
	remaining, ok := repo.enrollments[10]
	require.True(t, ok)
	assert.False(t, remaining.Cancelled)
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceEnrollAfterCancellation(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[int64]models.Enrollment{
		10: {ID: 10, StudentID: 1, CourseID: 1, EnrolledAt: time.Now(), Cancelled: true},
	}, nextID: 10}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 1, CourseID: 1})
	require.NoError(t, err)
	assert.NotEqual(t, int64(10), detail.ID)
	assert.Len(t, repo.enrollments, 2)
}

func TestEnrollmentServiceEnrollRaceMapsConstraintViolation(t *testing.T) {
	repo := &mockEnrollmentRepo{createErr: repository.ErrDuplicateActiveEnrollment}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Enroll(context.Background(), EnrollRequest{StudentID: 1, CourseID: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOperation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceCancel(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[int64]models.Enrollment{
		10: {ID: 10, StudentID: 1, CourseID: 1, EnrolledAt: time.Now()},
	}}
	svc := newEnrollmentFixture(repo)

	require.NoError(t, svc.Cancel(context.Background(), 10))
	assert.True(t, repo.enrollments[10].Cancelled)

	// The second cancel is rejected and the record stays cancelled.
	err := svc.Cancel(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOperation.Code, appErrors.FromError(err).Code)
	assert.True(t, repo.enrollments[10].Cancelled)
	assert.Len(t, repo.enrollments, 1)
}

func TestEnrollmentServiceCancelNotFound(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	err := svc.Cancel(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceRemoveNotFound(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[int64]models.Enrollment{}}
	svc := newEnrollmentFixture(repo)

	err := svc.Remove(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.enrollments)
}

func TestEnrollmentServiceUpdateCourseNotFound(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[int64]models.Enrollment{
		10: {ID: 10, StudentID: 1, CourseID: 1, EnrolledAt: time.Now()},
	}}
	svc := newEnrollmentFixture(repo)

	_, err := svc.Update(context.Background(), 10, UpdateEnrollmentRequest{StudentID: 1, CourseID: 777, EnrolledAt: time.Now()})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// The original association is unchanged.
	assert.Equal(t, int64(1), repo.enrollments[10].CourseID)
	assert.Nil(t, repo.updated)
}

func TestEnrollmentServiceUpdateMissingFields(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.Update(context.Background(), 10, UpdateEnrollmentRequest{StudentID: 1, CourseID: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOperation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentServiceUpdateReplacesAssociations(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[int64]models.Enrollment{
		10: {ID: 10, StudentID: 1, CourseID: 1, EnrolledAt: time.Now()},
	}}
	svc := newEnrollmentFixture(repo)

	newDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	detail, err := svc.Update(context.Background(), 10, UpdateEnrollmentRequest{StudentID: 1, CourseID: 2, EnrolledAt: newDate})
	require.NoError(t, err)
	assert.Equal(t, int64(2), detail.CourseID)
	assert.True(t, detail.EnrolledAt.Equal(newDate))
}

func TestEnrollmentServiceGetDetailPopulatesNames(t *testing.T) {
	repo := &mockEnrollmentRepo{
		enrollments: map[int64]models.Enrollment{
			10: {ID: 10, StudentID: 1, CourseID: 1, EnrolledAt: time.Now()},
		},
		details: map[int64]models.EnrollmentDetail{
			10: {
				Enrollment:  models.Enrollment{ID: 10, StudentID: 1, CourseID: 1, EnrolledAt: time.Now()},
				StudentName: "Ana Souza",
				CourseName:  "Algorithms",
			},
		},
	}
	svc := newEnrollmentFixture(repo)

	detail, err := svc.GetDetail(context.Background(), 10)
	require.NoError(t, err)
	assert.NotEmpty(t, detail.StudentName)
	assert.NotEmpty(t, detail.CourseName)
}

func TestEnrollmentServiceListDetailsRepeatable(t *testing.T) {
	repo := &mockEnrollmentRepo{details: map[int64]models.EnrollmentDetail{
		10: {
			Enrollment:  models.Enrollment{ID: 10, StudentID: 1, CourseID: 1, EnrolledAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
			StudentName: "Ana Souza",
			CourseName:  "Algorithms",
		},
	}}
	svc := newEnrollmentFixture(repo)

	first, err := svc.ListDetails(context.Background(), models.EnrollmentFilter{})
	require.NoError(t, err)
	second, err := svc.ListDetails(context.Background(), models.EnrollmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnrollmentServiceGetNotFound(t *testing.T) {
	svc := newEnrollmentFixture(&mockEnrollmentRepo{})

	_, err := svc.Get(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
