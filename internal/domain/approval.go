package domain

import "time"

// Approval pre-approves an email and/or student id for a role. The first
// registration matching it consumes it.
type Approval struct {
	ID        string     `json:"id"`
	Email     *string    `json:"email,omitempty"`
	StudentID *string    `json:"student_id,omitempty"`
	Role      string     `json:"role"`
	UsedBy    *string    `json:"used_by,omitempty"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created"`
}

type CreateApprovalRequest struct {
	Email     string `json:"email" validate:"required_without=StudentID,omitempty,email"`
	StudentID string `json:"student_id" validate:"required_without=Email,omitempty,max=32"`
	Role      string `json:"role" validate:"required,oneof=student alumni admin"`
}

type CheckApprovalRequest struct {
	Email     string `json:"email" validate:"required_without=StudentID,omitempty,email"`
	StudentID string `json:"student_id" validate:"required_without=Email"`
}
