package dto

import (
	"time"

	"github.com/noah-isme/internship-portal-api/internal/models"
)

// CreateResourceRequest records a material or assignment for a batch. The
// storage path is produced by the upload collaborator and stored verbatim.
type CreateResourceRequest struct {
	BatchID     string              `json:"batch_id" validate:"required,uuid"`
	Title       string              `json:"title" validate:"required,min=3,max=200"`
	Description string              `json:"description" validate:"max=4000"`
	Kind        models.ResourceKind `json:"kind" validate:"required,oneof=material assignment"`
	StoragePath string              `json:"storage_path" validate:"required,max=512"`
	DueDate     *time.Time          `json:"due_date"`
}
