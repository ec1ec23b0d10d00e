package models

import "time"

// ResourceKind distinguishes study material from graded assignments.
type ResourceKind string

const (
	ResourceMaterial   ResourceKind = "material"
	ResourceAssignment ResourceKind = "assignment"
)

// Resource records a batch resource. StoragePath is opaque to the engine.
type Resource struct {
	ID          string       `db:"id" json:"id"`
	BatchID     string       `db:"batch_id" json:"batch_id"`
	Title       string       `db:"title" json:"title"`
	Description string       `db:"description" json:"description"`
	Kind        ResourceKind `db:"kind" json:"kind"`
	StoragePath string       `db:"storage_path" json:"storage_path"`
	DueDate     *time.Time   `db:"due_date" json:"due_date,omitempty"`
	CreatedBy   string       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}
