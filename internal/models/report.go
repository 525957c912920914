package models

import "time"

// CourseEnrollmentSample is the slice of enrollment data the engagement
// report aggregates over: one row per enrollment in a course, joined with
// the student's birth date.
type CourseEnrollmentSample struct {
	EnrolledAt       time.Time `db:"enrolled_at"`
	Cancelled        bool      `db:"cancelled"`
	StudentBirthDate time.Time `db:"student_birth_date"`
}

// CourseEngagement is a per-course aggregate computed on demand,
// never persisted.
type CourseEngagement struct {
	CourseName        string  `json:"course_name"`
	TotalEnrolled     int64   `json:"total_enrolled"`
	AverageAge        float64 `json:"average_age"`
	RecentEnrollments int64   `json:"recent_enrollments"`
}
