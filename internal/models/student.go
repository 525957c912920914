package models

import "time"

// Student represents a person that can be enrolled into courses.
type Student struct {
	ID        int64     `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	BirthDate time.Time `db:"birth_date" json:"birth_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Age returns the student's age in whole years at the given instant.
func (s Student) Age(at time.Time) int {
	return AgeAt(s.BirthDate, at)
}

// AgeAt computes an age in whole calendar years, accounting for whether the
// birthday anniversary has passed in the evaluation year.
func AgeAt(birth, at time.Time) int {
	years := at.Year() - birth.Year()
	anniversary := birth.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
