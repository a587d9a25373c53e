package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// SetupMFA provisions (or re-provisions) TOTP for an account: a fresh
// secret, its otpauth:// URI and QR image, and a new set of one-time backup
// codes. The enrollment stays pending until [Engine.EnableMFA] confirms a
// code; re-running setup before then replaces the pending secret and codes
// wholesale. An already enabled enrollment is not touched.
//
// The returned secret and backup code plaintexts exist only in this response;
// the store keeps the secret and code hashes.
func (e *Engine) SetupMFA(ctx context.Context, accountID string) (*MFASetup, error) {
	if err := e.mfaReady(); err != nil {
		return nil, err
	}

	acct, err := e.creds.AccountByID(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !acct.Active {
		return nil, ErrAccountNotFound
	}

	var priorVersion uint64
	existing, err := e.mfaStore.Enrollment(ctx, accountID)
	switch {
	case err == nil:
		if existing.State == MFAEnabled {
			return nil, ErrMFAAlreadyEnabled
		}
		priorVersion = existing.CodesVersion
	case errors.Is(err, ErrNotEnrolled):
	default:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	prov, err := e.totp.Generate(acct.Email)
	if err != nil {
		return nil, err
	}

	codes, records, err := e.newBackupCodes(accountID)
	if err != nil {
		return nil, err
	}

	enrollment := &MFAEnrollment{
		AccountID:    accountID,
		Secret:       prov.Secret,
		State:        MFAPending,
		BackupCodes:  records,
		CodesVersion: priorVersion + 1,
	}
	if err := e.mfaStore.PutEnrollment(ctx, enrollment); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.emitAudit(ctx, auditActionMFASetup, auditResourceMFA, accountID, nil, nil)

	return &MFASetup{
		Secret:          prov.Secret,
		ProvisioningURI: prov.URI,
		QRCode:          prov.QRCode,
		BackupCodes:     codes,
	}, nil
}

// EnableMFA confirms a pending enrollment with a TOTP code and turns MFA on
// for the account. Backup codes cannot confirm an enrollment; possession of
// the authenticator itself is what is being proven. Failed confirmations
// count toward the MFA lockout like any other failed verification.
func (e *Engine) EnableMFA(ctx context.Context, accountID, code string) error {
	if err := e.mfaReady(); err != nil {
		return err
	}
	now := e.now()

	enrollment, err := e.loadEnrollment(ctx, accountID)
	if err != nil {
		return err
	}
	if enrollment.State == MFAEnabled {
		return ErrMFAAlreadyEnabled
	}

	if err := e.verifyTOTP(ctx, enrollment, code, now); err != nil {
		return err
	}

	enrollment.State = MFAEnabled
	enrollment.FailedAttempts = 0
	enrollment.LockedUntil = nil
	if err := e.mfaStore.PutEnrollment(ctx, enrollment); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricMFAEnabled)
	e.emitAudit(ctx, auditActionMFAEnabled, auditResourceMFA, accountID, nil, nil)
	return nil
}

// VerifyMFA checks a code against an enabled enrollment outside the login
// flow, for step-up confirmation of sensitive actions. TOTP is tried first,
// then the one-time backup codes.
func (e *Engine) VerifyMFA(ctx context.Context, accountID, code string) error {
	if err := e.mfaReady(); err != nil {
		return err
	}
	now := e.now()

	enrollment, err := e.loadEnrollment(ctx, accountID)
	if err != nil {
		return err
	}
	if enrollment.State != MFAEnabled {
		return ErrNotEnrolled
	}

	return e.verifyEnrollment(ctx, enrollment, code, now)
}

// DisableMFA turns MFA off after re-proving the account password. The
// enrollment record is deleted outright: secret, counters, and any unused
// backup codes.
func (e *Engine) DisableMFA(ctx context.Context, accountID, pass string) error {
	if err := e.mfaReady(); err != nil {
		return err
	}

	enrollment, err := e.loadEnrollment(ctx, accountID)
	if err != nil {
		return err
	}
	if enrollment.State != MFAEnabled {
		return ErrNotEnrolled
	}

	acct, err := e.creds.AccountByID(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !acct.Active || !e.hasher.Verify(pass, acct.PasswordHash) {
		e.emitAudit(ctx, auditActionMFADisabled, auditResourceMFA, accountID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.mfaStore.DeleteEnrollment(ctx, accountID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricMFADisabled)
	e.emitAudit(ctx, auditActionMFADisabled, auditResourceMFA, accountID, nil, nil)
	return nil
}

func (e *Engine) loadEnrollment(ctx context.Context, accountID string) (*MFAEnrollment, error) {
	enrollment, err := e.mfaStore.Enrollment(ctx, accountID)
	if errors.Is(err, ErrNotEnrolled) {
		return nil, ErrNotEnrolled
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return enrollment, nil
}

// verifyEnrollment is the MFA verification state machine: lockout gate,
// TOTP check, backup-code fallback, failure accounting. The MFA lockout is
// independent of the password lockout and uses its own counter and window.
func (e *Engine) verifyEnrollment(ctx context.Context, enrollment *MFAEnrollment, code string, now time.Time) error {
	if err := e.gateMFALock(ctx, enrollment, now); err != nil {
		return err
	}

	if e.totp.Verify(enrollment.Secret, code, now) {
		if err := e.mfaStore.RecordSuccess(ctx, enrollment.AccountID, now); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		e.metricInc(MetricMFASuccess)
		e.emitAudit(ctx, auditActionMFAVerified, auditResourceMFA, enrollment.AccountID, nil, nil)
		return nil
	}

	if hash, ok := backupCodeHash(enrollment.AccountID, code); ok {
		used, err := e.mfaStore.ConsumeBackupCode(ctx, enrollment.AccountID, hash)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if used {
			if err := e.mfaStore.RecordSuccess(ctx, enrollment.AccountID, now); err != nil {
				return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
			}
			e.metricInc(MetricBackupCodeUsed)
			e.emitAudit(ctx, auditActionBackupCodeUsed, auditResourceMFA, enrollment.AccountID, nil, nil)
			return nil
		}
	}

	return e.recordMFAFailure(ctx, enrollment.AccountID, now)
}

// verifyTOTP is verifyEnrollment without the backup-code fallback, used
// where only the authenticator may vouch (enabling MFA, regenerating codes).
func (e *Engine) verifyTOTP(ctx context.Context, enrollment *MFAEnrollment, code string, now time.Time) error {
	if err := e.gateMFALock(ctx, enrollment, now); err != nil {
		return err
	}

	if !e.totp.Verify(enrollment.Secret, code, now) {
		return e.recordMFAFailure(ctx, enrollment.AccountID, now)
	}

	if err := e.mfaStore.RecordSuccess(ctx, enrollment.AccountID, now); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// gateMFALock rejects attempts during an active MFA lockout and lazily
// clears one that has expired.
func (e *Engine) gateMFALock(ctx context.Context, enrollment *MFAEnrollment, now time.Time) error {
	if enrollment.Locked(now) {
		lockErr := &MFALockedError{RetryAfter: enrollment.LockedUntil.Sub(now)}
		e.metricInc(MetricMFALocked)
		e.emitAudit(ctx, auditActionMFAFailed, auditResourceMFA, enrollment.AccountID, lockErr, nil)
		return lockErr
	}
	if enrollment.LockedUntil != nil {
		if err := e.mfaStore.ClearLock(ctx, enrollment.AccountID); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		enrollment.FailedAttempts = 0
		enrollment.LockedUntil = nil
	}
	return nil
}

func (e *Engine) recordMFAFailure(ctx context.Context, accountID string, now time.Time) error {
	attempts, err := e.mfaStore.RecordFailure(ctx, accountID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if attempts >= e.config.TOTP.MaxAttempts {
		until := now.Add(e.config.TOTP.LockoutDuration)
		if err := e.mfaStore.Lock(ctx, accountID, until); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		lockErr := &MFALockedError{RetryAfter: e.config.TOTP.LockoutDuration}
		e.metricInc(MetricMFALocked)
		e.emitAudit(ctx, auditActionMFALocked, auditResourceMFA, accountID, lockErr, map[string]string{
			"failed_attempts": strconv.Itoa(attempts),
		})
		return lockErr
	}

	e.metricInc(MetricMFAFailure)
	e.emitAudit(ctx, auditActionMFAFailed, auditResourceMFA, accountID, ErrMFAInvalidCode, map[string]string{
		"failed_attempts": strconv.Itoa(attempts),
	})
	return ErrMFAInvalidCode
}
