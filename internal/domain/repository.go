package domain

import (
	"context"
	"time"
)

type UserRepository interface {
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByStudentID(ctx context.Context, studentID string) (*User, error)
	Create(ctx context.Context, u *User) error
	// Update writes every column of u.
	Update(ctx context.Context, u *User) error
	// UpdateProfile writes only student id, name, role, enabled and updated_at,
	// leaving credentials and the avatar to their own setters.
	UpdateProfile(ctx context.Context, u *User) error
	SetPassword(ctx context.Context, id, passwordHash string, at time.Time) error
	SetAvatar(ctx context.Context, id, avatarKey string, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]User, int, error)
}

type VerificationRepository interface {
	Create(ctx context.Context, v *VerificationCode) error
	// ConsumeLatest marks the newest unconsumed code for (address, purpose)
	// whose hash is codeHash consumed, provided it has not expired at now. Any
	// other outcome is ErrInvalidOrExpiredCode.
	ConsumeLatest(ctx context.Context, address string, purpose Purpose, codeHash string, now time.Time) (*VerificationCode, error)
	ListByAddress(ctx context.Context, address string, purpose Purpose) ([]VerificationCode, error)
}

type ApprovalRepository interface {
	Create(ctx context.Context, a *Approval) error
	List(ctx context.Context) ([]Approval, error)
	// FindUnused returns an unused approval matching email or studentID.
	FindUnused(ctx context.Context, email, studentID string) (*Approval, error)
	MarkUsed(ctx context.Context, id, userID string, at time.Time) error
}

// Repositories groups the stores taking part in one unit of work.
type Repositories interface {
	Users() UserRepository
	Verifications() VerificationRepository
	Approvals() ApprovalRepository
}

// UnitOfWork runs fn inside a single transaction. fn's error rolls everything back.
type UnitOfWork interface {
	Repositories
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}
