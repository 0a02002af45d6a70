package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rdt-project/auth-service/internal/model"
	"github.com/rdt-project/auth-service/internal/queue"
	"github.com/rdt-project/auth-service/internal/repository"
	"github.com/rdt-project/auth-service/internal/token"
)

// mockStore is an in-memory AccountStore that mirrors the serialization
// semantics of the SQL repository: every mutation takes the store lock, so
// racing failed attempts never lose an increment and the lock transition
// fires at most once per cycle.
type mockStore struct {
	mu    sync.Mutex
	users map[string]*model.User

	failureErr error // injected error for RecordFailure
	successErr error // injected error for RecordSuccess
}

func newMockStore(users ...*model.User) *mockStore {
	m := &mockStore{users: make(map[string]*model.User)}
	for _, u := range users {
		m.users[u.Username] = u
	}
	return m
}

func (m *mockStore) byID(id uint64) *model.User {
	for _, u := range m.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func (m *mockStore) GetByUsername(_ context.Context, username string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[username]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return *u, nil
}

func (m *mockStore) RecordFailure(_ context.Context, id uint64, threshold int, lockUntil time.Time) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failureErr != nil {
		return 0, false, m.failureErr
	}
	u := m.byID(id)
	if u == nil {
		return 0, false, repository.ErrUserNotFound
	}
	u.FailedAttempts++
	lockedNow := u.FailedAttempts >= threshold && u.Status == model.StatusActive
	if lockedNow {
		u.Status = model.StatusLocked
		until := lockUntil
		u.LockExpireAt = &until
	}
	return u.FailedAttempts, lockedNow, nil
}

func (m *mockStore) ClearExpiredLock(_ context.Context, id uint64, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.byID(id)
	if u == nil {
		return false, repository.ErrUserNotFound
	}
	if u.Status != model.StatusLocked || u.LockExpireAt == nil || u.LockExpireAt.After(now) {
		return false, nil
	}
	u.Status = model.StatusActive
	u.FailedAttempts = 0
	u.LockExpireAt = nil
	return true, nil
}

func (m *mockStore) RecordSuccess(_ context.Context, id uint64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.successErr != nil {
		return m.successErr
	}
	u := m.byID(id)
	if u == nil {
		return repository.ErrUserNotFound
	}
	u.FailedAttempts = 0
	u.LockExpireAt = nil
	t := now
	u.LastLoginAt = &t
	return nil
}

// snapshot returns a copy of the stored row for mutation assertions.
func (m *mockStore) snapshot(username string) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[username]
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestService builds an engine over the mock store with a fixed clock, a
// plaintext password verifier (bcrypt cost is irrelevant to policy tests) and
// the default policy numbers (threshold 5, 30 minute lock).
func newTestService(store *mockStore) *AuthService {
	tokens := token.New("unit-test-secret", 2*time.Hour)
	return NewAuthService(store, tokens, 5, 30*time.Minute).
		WithClock(func() time.Time { return testNow }).
		WithVerifier(func(hash, plain string) bool { return hash == plain })
}

func activeUser() *model.User {
	return &model.User{ID: 1, Username: "alice", Email: "alice@example.com", PasswordHash: "correct-horse", Status: model.StatusActive}
}

func TestLoginUnknownUser(t *testing.T) {
	svc := newTestService(newMockStore(activeUser()))

	_, err := svc.Login(context.Background(), "nobody", "whatever")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginSuccess(t *testing.T) {
	u := activeUser()
	u.FailedAttempts = 3 // prior failures must reset on success
	store := newMockStore(u)
	svc := newTestService(store)

	res, err := svc.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" {
		t.Error("expected a token")
	}
	if res.ExpiresIn != 7200 {
		t.Errorf("ExpiresIn = %d, want 7200", res.ExpiresIn)
	}
	if res.User.ID != 1 || res.User.Username != "alice" || res.User.Status != model.StatusActive {
		t.Errorf("unexpected user snapshot: %+v", res.User)
	}

	// The returned token must validate and name the username as subject.
	tokens := token.New("unit-test-secret", 2*time.Hour)
	if !tokens.Validate(res.Token) {
		t.Error("issued token should validate")
	}
	if sub, err := tokens.Subject(res.Token); err != nil || sub != "alice" {
		t.Errorf("Subject = %q, %v; want alice", sub, err)
	}

	after := store.snapshot("alice")
	if after.FailedAttempts != 0 {
		t.Errorf("FailedAttempts = %d, want 0", after.FailedAttempts)
	}
	if after.LastLoginAt == nil || !after.LastLoginAt.Equal(testNow) {
		t.Errorf("LastLoginAt = %v, want %v", after.LastLoginAt, testNow)
	}
}

func TestLoginWrongPasswordBelowThreshold(t *testing.T) {
	store := newMockStore(activeUser())
	svc := newTestService(store)

	for i := 1; i <= 4; i++ {
		_, err := svc.Login(context.Background(), "alice", "wrong")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: err = %v, want ErrInvalidCredentials", i, err)
		}
	}

	after := store.snapshot("alice")
	if after.FailedAttempts != 4 {
		t.Errorf("FailedAttempts = %d, want 4", after.FailedAttempts)
	}
	if after.Status != model.StatusActive {
		t.Errorf("Status = %d, account must stay active below the threshold", after.Status)
	}
}

func TestLoginFifthFailureLocks(t *testing.T) {
	store := newMockStore(activeUser())
	var events []queue.AccountLockedEvent
	svc := newTestService(store).WithLockHook(func(_ context.Context, ev queue.AccountLockedEvent) {
		events = append(events, ev)
	})

	for i := 1; i <= 4; i++ {
		_, _ = svc.Login(context.Background(), "alice", "wrong")
	}
	_, err := svc.Login(context.Background(), "alice", "wrong")

	if err != ErrAccountLockedNow {
		t.Fatalf("err = %v, want ErrAccountLockedNow", err)
	}
	// Both lock outcomes belong to the same error family.
	if !errors.Is(err, ErrAccountLocked) {
		t.Error("ErrAccountLockedNow should match ErrAccountLocked via errors.Is")
	}

	after := store.snapshot("alice")
	if after.Status != model.StatusLocked {
		t.Fatalf("Status = %d, want locked", after.Status)
	}
	wantUntil := testNow.Add(30 * time.Minute)
	if after.LockExpireAt == nil || !after.LockExpireAt.Equal(wantUntil) {
		t.Errorf("LockExpireAt = %v, want %v", after.LockExpireAt, wantUntil)
	}

	if len(events) != 1 {
		t.Fatalf("lock events = %d, want 1", len(events))
	}
	if events[0].Username != "alice" || events[0].FailedAttempts != 5 {
		t.Errorf("unexpected lock event: %+v", events[0])
	}
}

func TestLoginActiveLockRejectsCorrectPassword(t *testing.T) {
	u := activeUser()
	u.Status = model.StatusLocked
	u.FailedAttempts = 5
	until := testNow.Add(10 * time.Minute)
	u.LockExpireAt = &until
	store := newMockStore(u)
	svc := newTestService(store)

	before := store.snapshot("alice")
	_, err := svc.Login(context.Background(), "alice", "correct-horse")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("err = %v, want ErrAccountLocked", err)
	}
	if err == ErrAccountLockedNow {
		t.Error("an already-locked account must not report the locked-just-now outcome")
	}

	after := store.snapshot("alice")
	if after.FailedAttempts != before.FailedAttempts || after.Status != before.Status ||
		!after.LockExpireAt.Equal(*before.LockExpireAt) {
		t.Error("login against an actively locked account must not mutate the row")
	}
}

func TestLoginExpiredLockAutoUnlocks(t *testing.T) {
	u := activeUser()
	u.Status = model.StatusLocked
	u.FailedAttempts = 5
	until := testNow.Add(-time.Minute) // lock already stale
	u.LockExpireAt = &until
	store := newMockStore(u)
	svc := newTestService(store)

	// A correct password on an expired lock succeeds within this same
	// attempt; no second request is needed.
	res, err := svc.Login(context.Background(), "alice", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.Status != model.StatusActive {
		t.Errorf("snapshot status = %d, want active", res.User.Status)
	}

	after := store.snapshot("alice")
	if after.Status != model.StatusActive {
		t.Errorf("Status = %d, want active", after.Status)
	}
	if after.FailedAttempts != 0 {
		t.Errorf("FailedAttempts = %d, want 0", after.FailedAttempts)
	}
	if after.LockExpireAt != nil {
		t.Errorf("LockExpireAt = %v, want cleared", after.LockExpireAt)
	}
}

func TestLoginExpiredLockWrongPasswordCountsFresh(t *testing.T) {
	u := activeUser()
	u.Status = model.StatusLocked
	u.FailedAttempts = 5
	until := testNow.Add(-time.Minute)
	u.LockExpireAt = &until
	store := newMockStore(u)
	svc := newTestService(store)

	_, err := svc.Login(context.Background(), "alice", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	// The auto-unlock reset the counter before the failed check, so this is
	// failure number one of a new cycle, not number six of the old one.
	after := store.snapshot("alice")
	if after.FailedAttempts != 1 {
		t.Errorf("FailedAttempts = %d, want 1", after.FailedAttempts)
	}
	if after.Status != model.StatusActive {
		t.Errorf("Status = %d, want active", after.Status)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	u := activeUser()
	u.Status = model.StatusDisabled
	u.FailedAttempts = 2
	store := newMockStore(u)
	svc := newTestService(store)

	for _, password := range []string{"correct-horse", "wrong"} {
		_, err := svc.Login(context.Background(), "alice", password)
		if !errors.Is(err, ErrAccountDisabled) {
			t.Fatalf("password %q: err = %v, want ErrAccountDisabled", password, err)
		}
	}

	after := store.snapshot("alice")
	if after.FailedAttempts != 2 {
		t.Error("disabled account must not be mutated by login attempts")
	}
}

func TestLoginPersistenceFailureSurfaces(t *testing.T) {
	store := newMockStore(activeUser())
	store.failureErr = errors.New("connection reset")
	svc := newTestService(store)

	_, err := svc.Login(context.Background(), "alice", "wrong")
	if err == nil {
		t.Fatal("expected an error")
	}
	// A store failure must not masquerade as a policy outcome: the caller
	// has to know the attempt went uncounted.
	var authErr *Error
	if errors.As(err, &authErr) {
		t.Errorf("err = %v, want a non-policy persistence error", err)
	}

	store.failureErr = nil
	store.successErr = errors.New("connection reset")
	_, err = svc.Login(context.Background(), "alice", "correct-horse")
	if err == nil {
		t.Fatal("expected an error when the success update cannot persist")
	}
	if errors.As(err, &authErr) {
		t.Errorf("err = %v, want a non-policy persistence error", err)
	}
}

func TestConcurrentFailuresBelowThreshold(t *testing.T) {
	store := newMockStore(activeUser())
	svc := newTestService(store)

	const n = 4 // below the threshold of 5
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Login(context.Background(), "alice", "wrong")
		}()
	}
	wg.Wait()

	after := store.snapshot("alice")
	if after.FailedAttempts != n {
		t.Errorf("FailedAttempts = %d, want %d (no lost updates)", after.FailedAttempts, n)
	}
	if after.Status != model.StatusActive {
		t.Errorf("Status = %d, want active below threshold", after.Status)
	}
}

func TestConcurrentFailuresSingleLockTransition(t *testing.T) {
	store := newMockStore(activeUser())
	var mu sync.Mutex
	lockEvents := 0
	svc := newTestService(store).WithLockHook(func(_ context.Context, _ queue.AccountLockedEvent) {
		mu.Lock()
		lockEvents++
		mu.Unlock()
	})

	const n = 20 // well past the threshold
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Login(context.Background(), "alice", "wrong")
		}()
	}
	wg.Wait()

	after := store.snapshot("alice")
	if after.Status != model.StatusLocked {
		t.Fatalf("Status = %d, want locked", after.Status)
	}
	if after.FailedAttempts < 5 {
		t.Errorf("FailedAttempts = %d, want >= threshold", after.FailedAttempts)
	}
	if lockEvents != 1 {
		t.Errorf("lock transitions = %d, want exactly 1 per lock cycle", lockEvents)
	}
}
