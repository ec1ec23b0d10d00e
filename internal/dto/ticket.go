package dto

import (
	"time"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

// CreateLeaveRequest opens a leave ticket.
type CreateLeaveRequest struct {
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Reason    string    `json:"reason" validate:"required,min=10,max=1000"`
}

// ReviewLeaveRequest carries the admin decision.
type ReviewLeaveRequest struct {
	Decision models.LeaveStatus `json:"decision" validate:"required,oneof=approved rejected"`
}

// CreateQueryRequest opens an admin query ticket.
type CreateQueryRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"required,min=20,max=4000"`
}

// ResolveQueryRequest optionally attaches a response to a resolved query.
type ResolveQueryRequest struct {
	Response string `json:"response" validate:"max=4000"`
}

// TicketQuery filters leave and query listings.
type TicketQuery struct {
	UserID   string             `form:"user_id"`
	Status   models.LeaveStatus `form:"status" validate:"omitempty,oneof=pending approved rejected"`
	Resolved *bool              `form:"resolved"`
	Limit    int                `form:"limit" validate:"omitempty,gte=1,lte=200"`
	Offset   int                `form:"offset" validate:"omitempty,gte=0"`
}
