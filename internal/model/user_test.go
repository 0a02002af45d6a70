package model

import (
	"testing"
	"time"
)

func TestAccountState(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(10 * time.Minute)
	past := now.Add(-10 * time.Minute)

	tests := []struct {
		name        string
		user        User
		wantKind    StateKind
		wantExpired bool
	}{
		{"active", User{Status: StatusActive}, StateActive, false},
		{"disabled", User{Status: StatusDisabled}, StateDisabled, false},
		{"locked with future expiry", User{Status: StatusLocked, LockExpireAt: &future}, StateLocked, false},
		{"locked with past expiry", User{Status: StatusLocked, LockExpireAt: &past}, StateLocked, true},
		{"locked at exact expiry instant", User{Status: StatusLocked, LockExpireAt: &now}, StateLocked, true},
		// A locked row missing its expiry is inconsistent; it must fail
		// closed, never report as expired.
		{"locked with nil expiry", User{Status: StatusLocked}, StateLocked, false},
		{"unknown status defaults to active", User{Status: 9}, StateActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := tt.user.State()
			if state.Kind != tt.wantKind {
				t.Errorf("Kind = %d, want %d", state.Kind, tt.wantKind)
			}
			if got := state.LockExpired(now); got != tt.wantExpired {
				t.Errorf("LockExpired = %v, want %v", got, tt.wantExpired)
			}
		})
	}
}

func TestLockExpiredFalseForNonLocked(t *testing.T) {
	now := time.Now()
	for _, s := range []AccountState{{Kind: StateActive}, {Kind: StateDisabled}} {
		if s.LockExpired(now) {
			t.Errorf("LockExpired must be false for kind %d", s.Kind)
		}
	}
}
