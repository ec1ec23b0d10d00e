package models

import "time"

// LeaveStatus captures the review state of a leave request.
type LeaveStatus string

const (
	LeavePending  LeaveStatus = "pending"
	LeaveApproved LeaveStatus = "approved"
	LeaveRejected LeaveStatus = "rejected"
)

// LeaveRequest is a student's request for time off, reviewed by an admin.
type LeaveRequest struct {
	ID         string      `db:"id" json:"id"`
	UserID     string      `db:"user_id" json:"user_id"`
	StartDate  time.Time   `db:"start_date" json:"start_date"`
	EndDate    time.Time   `db:"end_date" json:"end_date"`
	Reason     string      `db:"reason" json:"reason"`
	Status     LeaveStatus `db:"status" json:"status"`
	ReviewedBy *string     `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt *time.Time  `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// AdminQuery is a question raised by a student and resolved by an admin.
type AdminQuery struct {
	ID          string     `db:"id" json:"id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Title       string     `db:"title" json:"title"`
	Description string     `db:"description" json:"description"`
	IsResolved  bool       `db:"is_resolved" json:"is_resolved"`
	Response    *string    `db:"response" json:"response,omitempty"`
	ResolvedBy  *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// TicketFilter constrains leave and query listings.
type TicketFilter struct {
	UserID      string
	LeaveStatus LeaveStatus
	Resolved    *bool
	Limit       int
	Offset      int
}
