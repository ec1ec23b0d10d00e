package models

import "time"

// Role is the single role assigned to an identity-provider subject.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleAdmin:
		return true
	}
	return false
}

// Identity binds an external subject id to its role. Roles are assigned once.
type Identity struct {
	SubjectID string    `db:"user_id" json:"subject_id"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SubjectRecord is the stored authorization state of a subject: its role and,
// for students, the profile gating self-service.
type SubjectRecord struct {
	SubjectID     string          `db:"user_id"`
	Role          Role            `db:"role"`
	ProfileID     *string         `db:"profile_id"`
	StudentStatus *ApprovalStatus `db:"status"`
	BatchID       *string         `db:"batch_id"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
