package models

import "time"

// StudentDashboard is the cached self-service summary for one student.
type StudentDashboard struct {
	UserID        string         `json:"user_id"`
	Status        ApprovalStatus `json:"status"`
	StudentCode   string         `json:"student_code"`
	BatchID       string         `json:"batch_id"`
	BatchActive   bool           `json:"batch_active"`
	Diary         DiaryAggregate `json:"diary"`
	Projects      int            `json:"projects"`
	PendingLeaves int            `json:"pending_leaves"`
	OpenQueries   int            `json:"open_queries"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
