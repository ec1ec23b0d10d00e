package dto

// CreateProjectRequest forms a new team led by the caller.
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

// AddMemberRequest is sent by a lead after a phone-number lookup.
type AddMemberRequest struct {
	SubjectID string `json:"subject_id" validate:"required,max=128"`
}
