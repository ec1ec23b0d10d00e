package models

import "time"

// ApprovalStatus gates student self-service features.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
)

// Terminal reports whether no further review transition is defined.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// StudentProfile is created at registration and reviewed by an admin.
type StudentProfile struct {
	ID          string         `db:"id" json:"id"`
	UserID      string         `db:"user_id" json:"user_id"`
	BatchID     string         `db:"batch_id" json:"batch_id"`
	FullName    string         `db:"full_name" json:"full_name"`
	Phone       string         `db:"phone" json:"phone"`
	StudentCode string         `db:"student_code" json:"student_code"`
	Status      ApprovalStatus `db:"status" json:"status"`
	ReviewedBy  *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// StudentProfileFilter encapsulates allowed search parameters for listing profiles.
type StudentProfileFilter struct {
	Status   *ApprovalStatus
	BatchIDs []string
	Search   string
	Page     int
	PageSize int
}

// StudentLookup is the reduced view returned by the phone search used when a
// project lead adds a member.
type StudentLookup struct {
	UserID      string `json:"user_id"`
	FullName    string `json:"full_name"`
	StudentCode string `json:"student_code"`
	BatchID     string `json:"batch_id"`
}
