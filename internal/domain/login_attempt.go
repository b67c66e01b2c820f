package domain

import "time"

// LoginAttempt tracks failed login attempts for an (email, ip) pair inside
// a sliding window. A row whose LastAttemptAt precedes the window start is
// logically stale and treated as absent. The row is deleted on any
// successful login for the pair.
type LoginAttempt struct {
	ID            string     `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	IPAddress     string     `json:"ip_address" db:"ip_address"`
	AttemptCount  int        `json:"attempt_count" db:"attempt_count"`
	LastAttemptAt time.Time  `json:"last_attempt_at" db:"last_attempt_at"`
	BlockedUntil  *time.Time `json:"blocked_until" db:"blocked_until"`
}
