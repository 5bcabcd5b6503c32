package domain

import "time"

// User is a directory identity. It is never hard-deleted; disabling clears Enabled.
type User struct {
	UserID       string    `json:"id"`
	Email        string    `json:"email"`
	StudentID    *string   `json:"student_id,omitempty"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	Verified     bool      `json:"verified"`
	Approved     bool      `json:"approved"`
	AvatarKey    string    `json:"-"`
	HasAvatar    bool      `json:"has_avatar"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created"`
	UpdatedAt    time.Time `json:"updated"`
}

type UpdateUserRequest struct {
	Name      *string `json:"name" validate:"omitempty,max=120"`
	StudentID *string `json:"student_id" validate:"omitempty,max=32"`
	Role      *string `json:"role" validate:"omitempty,oneof=student alumni admin"`
	Enabled   *bool   `json:"enabled"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}
