package dto

import "time"

// CreateDiaryEntryRequest is the payload for a new diary entry.
type CreateDiaryEntryRequest struct {
	EntryDate   time.Time `json:"entry_date" validate:"required"`
	Hours       *float64  `json:"hours" validate:"required,gte=0,lte=24"`
	WorkSummary string    `json:"work_summary" validate:"required"`
	Learnings   string    `json:"learnings" validate:"required"`
	Blockers    string    `json:"blockers"`
}

// UpdateDiaryEntryRequest replaces the editable fields of an entry. Week and
// owner are never accepted.
type UpdateDiaryEntryRequest struct {
	EntryDate   time.Time `json:"entry_date" validate:"required"`
	Hours       *float64  `json:"hours" validate:"required,gte=0,lte=24"`
	WorkSummary string    `json:"work_summary" validate:"required"`
	Learnings   string    `json:"learnings" validate:"required"`
	Blockers    string    `json:"blockers"`
}

// DiaryQuery mirrors supported listing filters.
type DiaryQuery struct {
	UserID string `form:"user_id"`
	Week   int    `form:"week"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}
