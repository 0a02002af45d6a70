package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rdt-project/auth-service/internal/model"
	"github.com/rdt-project/auth-service/internal/utils"
)

const userColumns = "id,username,email,password_hash,status,failed_attempts,lock_expire_at,last_login_at,created_at,updated_at"

// UserRepo reads and writes the `users` table. All login-policy mutations go
// through the three point-update methods below; nothing else in the service
// touches the counter or lock columns.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts a user with an active status and returns its ID.
func (r *UserRepo) Create(ctx context.Context, username, email, password string, cost int) (uint64, error) {
	username = strings.TrimSpace(username)
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, email, password_hash, status, failed_attempts) VALUES (?,?,?,?,0)",
		username, email, hash, model.StatusActive)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrUsernameExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUsername fetches a user by its login key.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	return r.getBy(ctx, "username=?", strings.TrimSpace(username))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getBy(ctx, "id=?", id)
}

func (r *UserRepo) getBy(ctx context.Context, where string, arg any) (model.User, error) {
	var (
		u        model.User
		attempts sql.NullInt64
		lockAt   sql.NullTime
		loginAt  sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE "+where+" LIMIT 1", arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Status,
			&attempts, &lockAt, &loginAt, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	// failed_attempts may be NULL on rows created before the lockout policy
	// existed; normalize to zero here so the policy never sees NULL.
	if attempts.Valid {
		u.FailedAttempts = int(attempts.Int64)
	}
	if lockAt.Valid {
		t := lockAt.Time
		u.LockExpireAt = &t
	}
	if loginAt.Valid {
		t := loginAt.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

// RecordFailure increments the consecutive-failure counter for a user and,
// when the new count reaches threshold, transitions the row to locked with
// the given expiry. The read and write happen inside one transaction with the
// row held under SELECT ... FOR UPDATE, so two racing failed attempts
// serialize: each increment lands and at most one caller observes the lock
// transition. It returns the count after the increment and whether this call
// locked the account.
func (r *UserRepo) RecordFailure(ctx context.Context, id uint64, threshold int, lockUntil time.Time) (int, bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		prev   sql.NullInt64
		status uint8
	)
	err = tx.QueryRowContext(ctx,
		"SELECT failed_attempts, status FROM users WHERE id=? FOR UPDATE", id).
		Scan(&prev, &status)
	if err == sql.ErrNoRows {
		return 0, false, ErrUserNotFound
	}
	if err != nil {
		return 0, false, err
	}

	attempts := 1
	if prev.Valid {
		attempts = int(prev.Int64) + 1
	}

	// Only an active row may transition to locked; a concurrent attempt that
	// already locked the account just keeps counting against the same cycle.
	lockedNow := attempts >= threshold && status == model.StatusActive
	if lockedNow {
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET failed_attempts=?, status=?, lock_expire_at=? WHERE id=?",
			attempts, model.StatusLocked, lockUntil.UTC(), id)
	} else {
		_, err = tx.ExecContext(ctx,
			"UPDATE users SET failed_attempts=? WHERE id=?", attempts, id)
	}
	if err != nil {
		return 0, false, err
	}
	if err := tx.Commit(); err != nil {
		return 0, false, err
	}
	return attempts, lockedNow, nil
}

// ClearExpiredLock resets a locked row back to active when its lock expiry
// has passed. The WHERE clause repeats the lock conditions so that two
// concurrent auto-unlocks are idempotent; it reports whether this call
// performed the reset.
func (r *UserRepo) ClearExpiredLock(ctx context.Context, id uint64, now time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET status=?, failed_attempts=0, lock_expire_at=NULL
		 WHERE id=? AND status=? AND lock_expire_at IS NOT NULL AND lock_expire_at<=?`,
		model.StatusActive, id, model.StatusLocked, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordSuccess resets the failure counter, clears any lock remnant and
// stamps the last login time in a single update.
func (r *UserRepo) RecordSuccess(ctx context.Context, id uint64, now time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_attempts=0, lock_expire_at=NULL, last_login_at=? WHERE id=?",
		now.UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record success for user %d: %w", id, ErrUserNotFound)
	}
	return nil
}
