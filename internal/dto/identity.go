package dto

import "github.com/noah-isme/internship-portal-api/internal/models"

// AssignRoleRequest binds a role to an identity-provider subject.
type AssignRoleRequest struct {
	SubjectID string      `json:"subject_id" validate:"required,max=128"`
	Role      models.Role `json:"role" validate:"required,oneof=student faculty admin"`
}
