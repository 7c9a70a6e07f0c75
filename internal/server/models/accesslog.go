package models

import "time"

// AccessStatus classifies an access-log entry.
type AccessStatus string

const (
	// StatusAttempt is recorded before any guard runs.
	StatusAttempt AccessStatus = "attempt"

	// StatusSuccess is a granted view.
	StatusSuccess AccessStatus = "success"

	// StatusFailure is any denied attempt: burned, expired, view limit,
	// rule denial.
	StatusFailure AccessStatus = "failure"

	// StatusBurn marks the transition to the terminal burned state,
	// whether consumed by the final view or forced by the owner.
	StatusBurn AccessStatus = "burn"
)

// AccessLogEntry is one append-only audit row per access event. Entries
// are never mutated and only disappear together with their secret.
type AccessLogEntry struct {
	ID           string
	SecretID     string
	AccessedAt   time.Time
	Status       AccessStatus
	ErrorMessage string
	ActorIP      string
	ActorAgent   string
	ActorUserID  string
	Metadata     map[string]string
}
