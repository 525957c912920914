package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgeAt(t *testing.T) {
	birth := time.Date(2000, 6, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"day before birthday", time.Date(2026, 6, 14, 0, 0, 0, 0, time.UTC), 25},
		{"on birthday", time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC), 26},
		{"day after birthday", time.Date(2026, 6, 16, 0, 0, 0, 0, time.UTC), 26},
		{"end of year", time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), 26},
		{"before birth", time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AgeAt(birth, tt.at))
		})
	}
}

func TestAgeAtLeapYearBirthday(t *testing.T) {
	birth := time.Date(2004, 2, 29, 0, 0, 0, 0, time.UTC)

	// AddDate normalizes Feb 29 to Mar 1 on non-leap years, so the birthday
	// is only reached on Mar 1.
	assert.Equal(t, 20, AgeAt(birth, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 21, AgeAt(birth, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
}
