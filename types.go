package authcore

import (
	"context"
	"time"
)

// Account is the credential-side view of a marketplace user. Accounts are
// never deleted by this core, only deactivated (Active=false).
type Account struct {
	ID           string
	Email        string
	PasswordHash string // empty for passwordless (federated-only) accounts
	Active       bool

	FailedAttempts int
	LockedUntil    *time.Time
	LastLoginAt    *time.Time
	LastLoginIP    string
}

// Locked reports whether the account's lockout window covers now.
func (a *Account) Locked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}

// MFAState is the lifecycle state of an account's MFA enrollment.
type MFAState uint8

const (
	// MFAUnenrolled means no enrollment record exists.
	MFAUnenrolled MFAState = iota
	// MFAPending means setup ran but no TOTP code has been confirmed yet.
	MFAPending
	// MFAEnabled means MFA is active and required at login.
	MFAEnabled
)

// BackupCodeRecord stores the SHA-256 hash of a single one-time backup code.
// The plaintext is returned to the caller exactly once and never persisted.
type BackupCodeRecord struct {
	Hash [32]byte
}

// MFAEnrollment is the per-account MFA record, one-to-one with Account.
// Secret is immutable once the enrollment is enabled except through a full
// re-setup, which atomically replaces both secret and backup codes.
type MFAEnrollment struct {
	AccountID string
	Secret    string // base32, never exposed after setup
	State     MFAState

	BackupCodes  []BackupCodeRecord
	CodesVersion uint64 // advances on every whole-set replacement

	FailedAttempts int
	LockedUntil    *time.Time
	LastUsedAt     *time.Time
}

// Locked reports whether the enrollment's failure lockout covers now.
func (e *MFAEnrollment) Locked(now time.Time) bool {
	return e.LockedUntil != nil && now.Before(*e.LockedUntil)
}

// CredentialStore is the persistence contract for accounts. Implementations
// must serialize counter mutations per account: RecordFailure is an atomic
// increment whose return value two concurrent callers can never both observe
// below the lockout threshold once it has been crossed.
//
// Lookup misses are reported as [ErrAccountNotFound]; backend failures wrap
// [ErrStoreUnavailable].
type CredentialStore interface {
	AccountByID(ctx context.Context, id string) (*Account, error)
	AccountByEmail(ctx context.Context, email string) (*Account, error)

	// RecordFailure atomically increments the failed-attempt counter and
	// returns the new value.
	RecordFailure(ctx context.Context, id string) (int, error)
	// Lock sets the lockout expiry. The counter is left in place; expiry is
	// observed lazily by the next attempt.
	Lock(ctx context.Context, id string, until time.Time) error
	// ClearLock zeroes the counter and clears the lockout expiry. Called on
	// the first attempt after the lockout window has passed.
	ClearLock(ctx context.Context, id string) error
	// RecordSuccess zeroes the counter, clears the lockout expiry, and
	// updates last-login bookkeeping, as one store-side mutation.
	RecordSuccess(ctx context.Context, id string, at time.Time, ip string) error

	UpdatePasswordHash(ctx context.Context, id, hash string) error
}

// MFAStore is the persistence contract for MFA enrollments. ConsumeBackupCode
// and ReplaceBackupCodes must be atomic with respect to each other so that a
// code can never be spent twice and a regeneration either sees the full prior
// set or fails with [ErrCodesConflict].
//
// A missing enrollment is reported as [ErrNotEnrolled]; backend failures wrap
// [ErrStoreUnavailable].
type MFAStore interface {
	Enrollment(ctx context.Context, accountID string) (*MFAEnrollment, error)
	// PutEnrollment creates or wholly replaces the enrollment record,
	// including its backup-code set and version.
	PutEnrollment(ctx context.Context, enrollment *MFAEnrollment) error
	DeleteEnrollment(ctx context.Context, accountID string) error

	// RecordFailure atomically increments the enrollment's failed-attempt
	// counter and returns the new value.
	RecordFailure(ctx context.Context, accountID string) (int, error)
	Lock(ctx context.Context, accountID string, until time.Time) error
	// ClearLock zeroes the counter and clears the lockout expiry. Called on
	// the first verification attempt after the lockout window has passed.
	ClearLock(ctx context.Context, accountID string) error
	// RecordSuccess zeroes the counter, clears the lockout, and stamps
	// last-used.
	RecordSuccess(ctx context.Context, accountID string, at time.Time) error

	// ConsumeBackupCode removes exactly the record matching hash and reports
	// whether it was present. Removal of one code must not disturb the rest
	// of the set.
	ConsumeBackupCode(ctx context.Context, accountID string, hash [32]byte) (bool, error)
	// ReplaceBackupCodes swaps in a new set only if the stored version still
	// equals priorVersion, otherwise [ErrCodesConflict].
	ReplaceBackupCodes(ctx context.Context, accountID string, priorVersion uint64, codes []BackupCodeRecord) error
}

// LoginResult carries the token pair issued by a successful login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
}

// MFASetup is returned by [Engine.SetupMFA]. Secret, QRCode, and BackupCodes
// are shown to the user once; only hashes of the backup codes are stored.
type MFASetup struct {
	Secret          string
	ProvisioningURI string
	QRCode          string // data:image/png;base64 URI, renderable directly
	BackupCodes     []string
}
