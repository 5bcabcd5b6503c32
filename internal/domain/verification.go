package domain

import "time"

// Purpose scopes a verification code to one flow.
type Purpose string

const (
	PurposeLogin        Purpose = "login"
	PurposeRegistration Purpose = "registration"
)

func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposeRegistration
}

// VerificationCode is one issued code. Only the SHA-256 of the code is stored.
// Redemption takes the most recently issued unconsumed row matching
// (Address, Purpose, CodeHash); consumed rows are terminal.
type VerificationCode struct {
	ID         string     `json:"id"`
	Address    string     `json:"address"`
	Purpose    Purpose    `json:"purpose"`
	CodeHash   string     `json:"-"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created"`
	ExpiresAt  time.Time  `json:"expires_at"`
}

// Expired reports whether the code can no longer be redeemed at now.
func (v *VerificationCode) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}
