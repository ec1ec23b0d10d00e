package dto

import "time"

// UpsertBatchRequest creates or replaces a batch definition.
type UpsertBatchRequest struct {
	Name      string    `json:"name" validate:"required,min=3,max=80"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	FacultyID *string   `json:"faculty_id" validate:"omitempty,max=128"`
}
