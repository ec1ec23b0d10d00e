package dto

import "github.com/noah-isme/internship-portal-api/internal/models"

// RegisterStudentRequest is submitted by a freshly authenticated subject.
type RegisterStudentRequest struct {
	BatchID  string `json:"batch_id" validate:"required,uuid"`
	FullName string `json:"full_name" validate:"required,min=3,max=120"`
	Phone    string `json:"phone" validate:"required,min=8,max=20"`
}

// ReviewStudentRequest carries the admin decision for a pending profile.
type ReviewStudentRequest struct {
	Decision models.ApprovalStatus `json:"decision" validate:"required,oneof=approved rejected"`
}
