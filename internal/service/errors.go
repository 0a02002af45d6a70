package service

// Business error codes surfaced in the response envelope. The codes are part
// of the API contract with the frontend and must stay stable.
const (
	CodeInvalidCredentials = 11001
	CodeAccountLocked      = 11004
	CodeAccountDisabled    = 11005
)

// Error is a typed, user-facing login failure. Unknown-username and
// wrong-password share one code and message so the endpoint cannot be used
// to enumerate accounts.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches errors by business code, so errors.Is(err, ErrAccountLocked)
// holds for both the already-locked and the locked-just-now outcome while the
// two values remain distinguishable by identity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	// ErrInvalidCredentials covers unknown usernames and wrong passwords.
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid username or password"}

	// ErrAccountLocked is returned while a previously applied lock is still
	// active.
	ErrAccountLocked = &Error{Code: CodeAccountLocked, Message: "account is locked, please try again later"}

	// ErrAccountLockedNow is returned on the attempt that crossed the
	// failure threshold and applied the lock.
	ErrAccountLockedNow = &Error{Code: CodeAccountLocked, Message: "account locked due to too many failed attempts"}

	// ErrAccountDisabled is returned for administratively disabled accounts.
	ErrAccountDisabled = &Error{Code: CodeAccountDisabled, Message: "account is disabled"}
)
