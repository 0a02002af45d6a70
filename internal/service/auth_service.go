// Package service implements the login policy: credential verification,
// progressive failure counting, automatic account locking and unlocking, and
// token issuance on success. The engine holds no mutable state of its own;
// every attempt is evaluated fresh against the persisted account row.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/rdt-project/auth-service/internal/model"
	"github.com/rdt-project/auth-service/internal/queue"
	"github.com/rdt-project/auth-service/internal/repository"
	"github.com/rdt-project/auth-service/internal/token"
	"github.com/rdt-project/auth-service/internal/utils"
)

// AccountStore is the slice of persistence the login policy needs. The
// implementations must serialize concurrent mutations of one row: racing
// failed attempts may not lose an increment, and at most one caller may
// observe the lock transition per lock cycle.
type AccountStore interface {
	GetByUsername(ctx context.Context, username string) (model.User, error)
	RecordFailure(ctx context.Context, id uint64, threshold int, lockUntil time.Time) (attempts int, lockedNow bool, err error)
	ClearExpiredLock(ctx context.Context, id uint64, now time.Time) (bool, error)
	RecordSuccess(ctx context.Context, id uint64, now time.Time) error
}

// LockHook is invoked after an account transitions to locked. The wiring in
// main publishes the event to the message broker; the hook must not block
// login handling for long and its failures never change the login outcome.
type LockHook func(ctx context.Context, ev queue.AccountLockedEvent)

// UserInfo is the snapshot of identity fields returned with a token.
type UserInfo struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Status   uint8  `json:"status"`
}

// LoginResult is the successful outcome of a login attempt.
type LoginResult struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expiresIn"` // seconds until the token expires
	User      UserInfo `json:"user"`
}

// AuthService decides, for a single login attempt, whether to authenticate
// the caller and applies the failure/lockout state machine described by the
// account status columns.
type AuthService struct {
	store        AccountStore
	tokens       *token.Service
	maxAttempts  int
	lockDuration time.Duration
	verify       func(hash, plain string) bool
	now          func() time.Time
	onLocked     LockHook
}

// NewAuthService builds the engine from its collaborators and the externally
// supplied policy numbers (failure threshold and lock duration).
func NewAuthService(store AccountStore, tokens *token.Service, maxAttempts int, lockDuration time.Duration) *AuthService {
	return &AuthService{
		store:        store,
		tokens:       tokens,
		maxAttempts:  maxAttempts,
		lockDuration: lockDuration,
		verify:       utils.VerifyPassword,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithLockHook registers a hook invoked on each lock transition.
func (s *AuthService) WithLockHook(h LockHook) *AuthService {
	s.onLocked = h
	return s
}

// WithClock overrides the time source for deterministic tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// WithVerifier overrides the password verification primitive. Tests use a
// plaintext comparison to avoid paying bcrypt cost per case.
func (s *AuthService) WithVerifier(verify func(hash, plain string) bool) *AuthService {
	s.verify = verify
	return s
}

// Login runs one attempt through the state machine:
//
//	lookup -> status gate -> password check -> failure policy / success path
//
// Every negative outcome is a *Error with a stable business code. Store
// failures are returned wrapped so an attempt whose counter update could not
// be persisted fails loudly instead of passing uncounted.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	user, err := s.store.GetByUsername(ctx, username)
	if err != nil {
		if isNotFound(err) {
			// Indistinguishable from a wrong password on purpose.
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load user %q: %w", username, err)
	}

	now := s.now()

	switch state := user.State(); state.Kind {
	case model.StateDisabled:
		return LoginResult{}, ErrAccountDisabled
	case model.StateLocked:
		if !state.LockExpired(now) {
			return LoginResult{}, ErrAccountLocked
		}
		// Stale lock: clear it and fall through to the password check so a
		// correct password succeeds within this same attempt. The reset is
		// conditional in the store, so a concurrent attempt doing the same
		// repair is harmless.
		if _, err := s.store.ClearExpiredLock(ctx, user.ID, now); err != nil {
			return LoginResult{}, fmt.Errorf("clear expired lock for user %d: %w", user.ID, err)
		}
		user.Status = model.StatusActive
		user.FailedAttempts = 0
		user.LockExpireAt = nil
	}

	if !s.verify(user.PasswordHash, password) {
		return LoginResult{}, s.recordFailure(ctx, user, now)
	}

	if err := s.store.RecordSuccess(ctx, user.ID, now); err != nil {
		return LoginResult{}, fmt.Errorf("record login success for user %d: %w", user.ID, err)
	}

	tok, err := s.tokens.Issue(user.Username)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token for user %d: %w", user.ID, err)
	}

	return LoginResult{
		Token:     tok.Value,
		ExpiresIn: int64(s.tokens.TTL() / time.Second),
		User:      UserInfo{ID: user.ID, Username: user.Username, Status: model.StatusActive},
	}, nil
}

// recordFailure applies the failure policy after a wrong password and returns
// the error the caller must surface.
func (s *AuthService) recordFailure(ctx context.Context, user model.User, now time.Time) error {
	attempts, lockedNow, err := s.store.RecordFailure(ctx, user.ID, s.maxAttempts, now.Add(s.lockDuration))
	if err != nil {
		// An attempt that cannot be counted is a policy-enforcement gap;
		// log it louder than the routine outcomes and fail the attempt.
		log.Printf("ERROR auth: failed to persist failed attempt for user %d: %v", user.ID, err)
		return fmt.Errorf("record failed attempt for user %d: %w", user.ID, err)
	}
	if !lockedNow {
		return ErrInvalidCredentials
	}
	if s.onLocked != nil {
		s.onLocked(ctx, queue.AccountLockedEvent{
			UserID:         user.ID,
			Username:       user.Username,
			FailedAttempts: attempts,
			LockedUntil:    now.Add(s.lockDuration).UTC().Format(time.RFC3339),
			OccurredAt:     now.UTC().Format(time.RFC3339),
		})
	}
	return ErrAccountLockedNow
}

// isNotFound matches the store's not-found sentinel.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrUserNotFound)
}
