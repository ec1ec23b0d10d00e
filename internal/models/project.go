package models

import "time"

// Project is a student team; the lead is always also a member.
type Project struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	LeadID      string    `db:"lead_id" json:"lead_id"`
	MemberCount int       `db:"member_count" json:"member_count"`
	LeadBatchID string    `db:"lead_batch_id" json:"lead_batch_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// ProjectMember links a subject to a project.
type ProjectMember struct {
	ProjectID string    `db:"project_id" json:"project_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	FullName  *string   `db:"full_name" json:"full_name,omitempty"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
}

// ProjectDetail bundles a project with its roster.
type ProjectDetail struct {
	Project
	Members []ProjectMember `json:"members"`
}
