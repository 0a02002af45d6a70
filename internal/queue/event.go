// Package queue defines the security-event payloads exchanged over the
// message broker and the background consumer that records them.
package queue

// AccountLockedEvent is published whenever the login policy locks an account
// after too many consecutive password failures. It carries enough context for
// downstream consumers (audit log, alerting) without querying the primary
// database. Delivery is best effort: lockout enforcement never waits on the
// broker.
type AccountLockedEvent struct {
	UserID         uint64 `json:"user_id"`
	Username       string `json:"username"`
	FailedAttempts int    `json:"failed_attempts"`
	LockedUntil    string `json:"locked_until"`
	OccurredAt     string `json:"occurred_at"`
}
