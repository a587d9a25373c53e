package authcore

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrInvalidCredentials is returned for any credential failure the caller
	// must not be able to distinguish: unknown email, deactivated account,
	// missing password hash, or password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked matches [AccountLockedError] values via errors.Is.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountNotFound is returned by credential stores for unknown accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrTokenInvalid is returned for any malformed, tampered, or mistyped token.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenExpired is returned when a structurally valid token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrMFARequired is returned by Login when the account has MFA enabled and
	// no code was supplied.
	ErrMFARequired = errors.New("mfa required")
	// ErrMFAInvalidCode is returned when neither the TOTP code nor any stored
	// backup code matches.
	ErrMFAInvalidCode = errors.New("invalid mfa code")
	// ErrMFALocked matches [MFALockedError] values via errors.Is.
	ErrMFALocked = errors.New("mfa locked")
	// ErrMFAAlreadyEnabled is returned by SetupMFA for an enabled enrollment.
	ErrMFAAlreadyEnabled = errors.New("mfa already enabled")
	// ErrNotEnrolled is returned by MFA stores and operations that require an
	// existing enrollment. An undecodable enrollment record is NOT reported
	// this way; that would silently waive MFA for the account. Stores surface
	// corruption as a backend error instead.
	ErrNotEnrolled = errors.New("mfa not enrolled")
	// ErrPasswordPolicy is returned when a new password fails the strength policy.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a password change repeats the current password.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrStoreUnavailable wraps backend failures from either store.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrCodesConflict is returned by MFA stores when a versioned backup-code
	// replacement loses a race against a concurrent consume or regeneration.
	ErrCodesConflict = errors.New("backup code set version conflict")
	// ErrEngineNotReady is returned when an Engine method is called before
	// Build wired its dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// AccountLockedError reports a login attempt against a locked account,
// carrying the remaining lockout duration. errors.Is(err, ErrAccountLocked)
// matches it.
type AccountLockedError struct {
	RetryAfter time.Duration
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account locked, retry in %d minute(s)", e.Minutes())
}

// Minutes returns the remaining lockout rounded up to whole minutes, the
// unit surfaced to end users.
func (e *AccountLockedError) Minutes() int {
	return remainingMinutes(e.RetryAfter)
}

// Is reports ErrAccountLocked as this error's sentinel.
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// MFALockedError reports an MFA verification attempt while the enrollment's
// own failure lockout is active. errors.Is(err, ErrMFALocked) matches it.
type MFALockedError struct {
	RetryAfter time.Duration
}

func (e *MFALockedError) Error() string {
	return fmt.Sprintf("mfa temporarily locked, retry in %d minute(s)", e.Minutes())
}

// Minutes returns the remaining lockout rounded up to whole minutes.
func (e *MFALockedError) Minutes() int {
	return remainingMinutes(e.RetryAfter)
}

// Is reports ErrMFALocked as this error's sentinel.
func (e *MFALockedError) Is(target error) bool {
	return target == ErrMFALocked
}

func remainingMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Minutes()))
}
