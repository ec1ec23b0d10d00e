package models

import "time"

// DiaryEntry is one day of internship work logged by a student.
type DiaryEntry struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	EntryDate   time.Time `db:"entry_date" json:"entry_date"`
	WeekNumber  int       `db:"week_number" json:"week_number"`
	Hours       float64   `db:"hours" json:"hours"`
	WorkSummary string    `db:"work_summary" json:"work_summary"`
	Learnings   string    `db:"learnings" json:"learnings"`
	Blockers    string    `db:"blockers" json:"blockers"`
	IsLocked    bool      `db:"is_locked" json:"is_locked"`
	Editable    bool      `db:"-" json:"editable"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// WeekCursor describes an owner's most recent diary week.
type WeekCursor struct {
	LatestWeek  int `db:"latest_week"`
	CountInWeek int `db:"count_in_week"`
}

// DiaryAggregate summarises an owner's diary.
type DiaryAggregate struct {
	UserID     string  `db:"user_id" json:"user_id"`
	TotalHours float64 `db:"total_hours" json:"total_hours"`
	EntryCount int     `db:"entry_count" json:"entry_count"`
	Weeks      int     `db:"weeks" json:"weeks"`
}

// DiaryFilter narrows diary listings.
type DiaryFilter struct {
	UserID   string
	BatchIDs []string
	Week     int
	Limit    int
	Offset   int
}
