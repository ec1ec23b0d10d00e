package models

import "time"

// AuditAction constants represent lifecycle transitions recorded in the trail.
const (
	AuditActionRoleAssign      = "ROLE_ASSIGN"
	AuditActionStudentRegister = "STUDENT_REGISTER"
	AuditActionStudentReview   = "STUDENT_REVIEW"
	AuditActionBatchCreate     = "BATCH_CREATE"
	AuditActionBatchUpdate     = "BATCH_UPDATE"
	AuditActionDiaryCreate     = "DIARY_CREATE"
	AuditActionDiaryUpdate     = "DIARY_UPDATE"
	AuditActionDiaryLock       = "DIARY_LOCK"
	AuditActionProjectCreate   = "PROJECT_CREATE"
	AuditActionProjectJoin     = "PROJECT_JOIN"
	AuditActionProjectAdd      = "PROJECT_ADD_MEMBER"
	AuditActionLeaveCreate     = "LEAVE_CREATE"
	AuditActionLeaveReview     = "LEAVE_REVIEW"
	AuditActionQueryCreate     = "QUERY_CREATE"
	AuditActionQueryResolve    = "QUERY_RESOLVE"
	AuditActionResourceCreate  = "RESOURCE_CREATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	RequestID  string    `db:"request_id" json:"request_id"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
