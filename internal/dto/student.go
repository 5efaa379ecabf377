package dto

// CreateStudentRequest captures payload to register a roster entry.
type CreateStudentRequest struct {
	Name   string `json:"name" validate:"required"`
	Course string `json:"course" validate:"required"`
}

// UpdateStudentRequest captures editable roster fields.
type UpdateStudentRequest struct {
	Name   *string `json:"name,omitempty"`
	Course *string `json:"course,omitempty"`
}
