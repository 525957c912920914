package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/escola-hub/escola-api/internal/models"
)

// ErrDuplicateCourseName is returned when a write trips the unique index on
// courses.name.
var ErrDuplicateCourseName = errors.New("course name already in use")

// CourseRepository manages persistence for course records.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = "id, name, description, workload_hours, created_at, updated_at"

// List returns all courses ordered by id. The engagement report iterates
// courses in this order.
func (r *CourseRepository) List(ctx context.Context) ([]models.Course, error) {
	const query = "SELECT " + courseColumns + " FROM courses ORDER BY id"
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// FindByID fetches a course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	const query = "SELECT " + courseColumns + " FROM courses WHERE id = $1"
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByName checks if a course with the given name exists, optionally
// excluding an ID.
func (r *CourseRepository) ExistsByName(ctx context.Context, name string, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM courses WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID > 0 {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course name: %w", err)
	}
	return true, nil
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	const query = `INSERT INTO courses (name, description, workload_hours)
        VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query, course.Name, course.Description, course.WorkloadHours)
	if err := row.Scan(&course.ID, &course.CreatedAt, &course.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCourseName
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update overwrites an existing course record.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	const query = `UPDATE courses SET name = $2, description = $3, workload_hours = $4, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, course.ID, course.Name, course.Description, course.WorkloadHours); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCourseName
		}
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course, reporting whether a row was removed.
func (r *CourseRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const query = `DELETE FROM courses WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete course: %w", err)
	}
	return affected > 0, nil
}
