package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/escola-hub/escola-api/internal/models"
)

// ErrDuplicateActiveEnrollment is returned when an insert or update trips the
// partial unique index on (student_id, course_id) WHERE NOT cancelled. The
// index is the authoritative guard; the service-level existence check is only
// a fast path for a friendlier error.
var ErrDuplicateActiveEnrollment = errors.New("duplicate active enrollment")

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolationCode
}

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = "id, student_id, course_id, enrolled_at, cancelled"

// List returns bare enrollment rows matching the filter.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments"
	clause, args := filterClause(filter, "")
	query += clause + " ORDER BY id"

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// ListDetails returns enrollments pre-joined with student and course names.
// The join is eager so callers never need a second round trip per record.
func (r *EnrollmentRepository) ListDetails(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, error) {
	query := `SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.cancelled,
        s.full_name AS student_name, s.email AS student_email, c.name AS course_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id`
	clause, args := filterClause(filter, "e.")
	query += clause + " ORDER BY e.id"

	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, fmt.Errorf("list enrollment details: %w", err)
	}
	return details, nil
}

func filterClause(filter models.EnrollmentFilter, prefix string) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	if filter.StudentID > 0 {
		conditions = append(conditions, fmt.Sprintf("%sstudent_id = $%d", prefix, len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID > 0 {
		conditions = append(conditions, fmt.Sprintf("%scourse_id = $%d", prefix, len(args)+1))
		args = append(args, filter.CourseID)
	}
	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	const query = "SELECT " + enrollmentColumns + " FROM enrollments WHERE id = $1"
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindDetailByID returns an enrollment joined with student and course names.
func (r *EnrollmentRepository) FindDetailByID(ctx context.Context, id int64) (*models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.cancelled,
        s.full_name AS student_name, s.email AS student_email, c.name AS course_name
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var detail models.EnrollmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ExistsActive checks whether the student holds a non-cancelled enrollment in
// the course. Cancelled rows do not block re-enrollment.
func (r *EnrollmentRepository) ExistsActive(ctx context.Context, studentID, courseID, excludeID int64) (bool, error) {
	query := "SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND NOT cancelled"
	args := []interface{}{studentID, courseID}
	if excludeID > 0 {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active enrollment: %w", err)
	}
	return true, nil
}

// ListByCourseWithStudents returns every enrollment for the course, cancelled
// included, carrying the data the engagement report aggregates over.
func (r *EnrollmentRepository) ListByCourseWithStudents(ctx context.Context, courseID int64) ([]models.CourseEnrollmentSample, error) {
	const query = `SELECT e.enrolled_at, e.cancelled, s.birth_date AS student_birth_date
        FROM enrollments e
        JOIN students s ON s.id = e.student_id
        WHERE e.course_id = $1`
	var samples []models.CourseEnrollmentSample
	if err := r.db.SelectContext(ctx, &samples, query, courseID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return samples, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (student_id, course_id, enrolled_at, cancelled)
        VALUES ($1, $2, $3, $4) RETURNING id`
	if err := r.db.GetContext(ctx, &enrollment.ID, query, enrollment.StudentID, enrollment.CourseID, enrollment.EnrolledAt, enrollment.Cancelled); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActiveEnrollment
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update replaces the mutable associations and date of an enrollment.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET student_id = $2, course_id = $3, enrolled_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrollment.EnrolledAt); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateActiveEnrollment
		}
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// Cancel flips the cancelled flag. The guard in the WHERE clause makes the
// flip lose cleanly when a concurrent request cancelled the row first.
func (r *EnrollmentRepository) Cancel(ctx context.Context, id int64) (bool, error) {
	const query = `UPDATE enrollments SET cancelled = TRUE WHERE id = $1 AND NOT cancelled`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("cancel enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("cancel enrollment: %w", err)
	}
	return affected > 0, nil
}

// Delete hard-deletes the enrollment, reporting whether a row was removed.
func (r *EnrollmentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	const query = `DELETE FROM enrollments WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete enrollment: %w", err)
	}
	return affected > 0, nil
}
