package model

import "time"

// Account status values as stored in the `users.status` column. The numeric
// encoding follows the administrative backend's convention: 0 means the
// account was disabled by an operator, 1 is the normal operating state and 2
// means the account is temporarily locked by the failure policy.
const (
	StatusDisabled uint8 = 0
	StatusActive   uint8 = 1
	StatusLocked   uint8 = 2
)

// User mirrors a row of the `users` table. Only the repository layer touches
// the raw column values; the login policy works with the AccountState view
// below.
//
// Fields:
//
//	ID             – users.id, immutable primary key.
//	Username       – users.username, unique login key and token subject.
//	Email          – users.email.
//	PasswordHash   – users.password_hash, bcrypt digest.
//	Status         – users.status (see Status* constants).
//	FailedAttempts – users.failed_attempts, consecutive failures since the
//	                 last success or lock transition.
//	LockExpireAt   – users.lock_expire_at, set while Status is locked.
//	LastLoginAt    – users.last_login_at, updated only on success.
//	CreatedAt      – users.created_at.
//	UpdatedAt      – users.updated_at.
type User struct {
	ID             uint64
	Username       string
	Email          string
	PasswordHash   string
	Status         uint8
	FailedAttempts int
	LockExpireAt   *time.Time // nullable
	LastLoginAt    *time.Time // nullable
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// StateKind enumerates the three account states relevant to login.
type StateKind uint8

const (
	StateActive StateKind = iota
	StateDisabled
	StateLocked
)

// AccountState is the tagged view of the status column plus its auxiliary
// lock expiry. Modelling the pair as one value keeps the "locked but the lock
// already expired" case explicit instead of spreading it across an int and a
// nullable timestamp.
type AccountState struct {
	Kind  StateKind
	Until time.Time // zero unless Kind == StateLocked
}

// State derives the AccountState for a user row. A locked row with a NULL
// expiry would be inconsistent; it is treated as a lock that never expires so
// a corrupt row fails closed rather than open.
func (u *User) State() AccountState {
	switch u.Status {
	case StatusDisabled:
		return AccountState{Kind: StateDisabled}
	case StatusLocked:
		if u.LockExpireAt == nil {
			return AccountState{Kind: StateLocked, Until: maxTime}
		}
		return AccountState{Kind: StateLocked, Until: *u.LockExpireAt}
	default:
		return AccountState{Kind: StateActive}
	}
}

// LockExpired reports whether a locked state is stale at the given instant.
// It is always false for non-locked states.
func (s AccountState) LockExpired(now time.Time) bool {
	return s.Kind == StateLocked && !s.Until.After(now)
}

// maxTime is the far-future sentinel used for inconsistent locked rows.
var maxTime = time.Unix(1<<62-1, 0)
