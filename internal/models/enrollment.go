package models

import "time"

// Enrollment captures a student's registration to a course.
// The row is retained after cancellation for audit history.
type Enrollment struct {
	ID         int64     `db:"id" json:"id"`
	StudentID  int64     `db:"student_id" json:"student_id"`
	CourseID   int64     `db:"course_id" json:"course_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
	Cancelled  bool      `db:"cancelled" json:"cancelled"`
}

// EnrollmentDetail enriches Enrollment with student and course info,
// joined eagerly so the names are never dangling for an existing row.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
	CourseName   string `db:"course_name" json:"course_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID int64
	CourseID  int64
}
