package models

import "time"

// Batch is an internship cohort with an optional assigned faculty member.
type Batch struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	FacultyID *string   `db:"faculty_id" json:"faculty_id,omitempty"`
	Active    bool      `db:"-" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the calendar day of now falls within [start, end].
func (b Batch) IsActive(now time.Time) bool {
	day := truncateDay(now)
	return !day.Before(truncateDay(b.StartDate)) && !day.After(truncateDay(b.EndDate))
}

// BatchFilter narrows batch listings.
type BatchFilter struct {
	IDs       []string
	FacultyID string
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
