package domain

import "time"

// DeliveryJob carries a freshly issued code to the delivery worker. It lives
// in memory only; the raw code is never persisted.
type DeliveryJob struct {
	ID        string
	Address   string
	Code      string
	Purpose   Purpose
	CreatedAt time.Time
}

// DeadLetter records a delivery that was abandoned after its retries ran out.
type DeadLetter struct {
	ID         string     `json:"id" dynamodbav:"dead_letter_id"`
	JobID      string     `json:"job_id" dynamodbav:"job_id"`
	Address    string     `json:"address" dynamodbav:"address"`
	Purpose    Purpose    `json:"purpose" dynamodbav:"purpose"`
	Attempts   int        `json:"attempts" dynamodbav:"attempts"`
	LastError  string     `json:"last_error" dynamodbav:"last_error"`
	FailedAt   time.Time  `json:"failed_at" dynamodbav:"failed_at"`
	Resolved   bool       `json:"resolved" dynamodbav:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" dynamodbav:"resolved_at,omitempty"`
	ExpiresAt  int64      `json:"-" dynamodbav:"expires_at"` // TTL (Unix seconds)
}
