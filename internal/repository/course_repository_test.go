package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escola-hub/escola-api/internal/models"
)

func newCourseRepoMock(t *testing.T) (*CourseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewCourseRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestCourseRepositoryList(t *testing.T) {
	repo, mock := newCourseRepoMock(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "workload_hours", "created_at", "updated_at"}).
		AddRow(int64(1), "Algorithms", "Sorting and searching", 80, now, now).
		AddRow(int64(2), "Databases", "", 60, now, now)

	mock.ExpectQuery("SELECT id, name, description, workload_hours, created_at, updated_at FROM courses ORDER BY id").
		WillReturnRows(rows)

	courses, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "Algorithms", courses[0].Name)
	assert.Equal(t, 60, courses[1].WorkloadHours)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreate(t *testing.T) {
	repo, mock := newCourseRepoMock(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO courses").
		WithArgs("Algorithms", "Sorting and searching", 80).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(1), now, now))

	course := &models.Course{Name: "Algorithms", Description: "Sorting and searching", WorkloadHours: 80}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.Equal(t, int64(1), course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateMapsUniqueViolation(t *testing.T) {
	repo, mock := newCourseRepoMock(t)

	mock.ExpectQuery("INSERT INTO courses").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "uq_courses_name"})

	err := repo.Create(context.Background(), &models.Course{Name: "Algorithms", WorkloadHours: 80})
	assert.ErrorIs(t, err, ErrDuplicateCourseName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUpdate(t *testing.T) {
	repo, mock := newCourseRepoMock(t)

	mock.ExpectExec("UPDATE courses SET").
		WithArgs(int64(1), "Algorithms II", "Graphs", 100).
		WillReturnResult(sqlmock.NewResult(0, 1))

	course := &models.Course{ID: 1, Name: "Algorithms II", Description: "Graphs", WorkloadHours: 100}
	require.NoError(t, repo.Update(context.Background(), course))
	assert.NoError(t, mock.ExpectationsWereMet())
}
