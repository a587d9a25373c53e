package authcore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Login verifies email and password and issues a token pair. When the
// account has MFA enabled the credentials are checked but no tokens are
// issued; the caller receives [ErrMFARequired] and retries through
// [Engine.LoginWithMFA].
//
// Unknown emails, deactivated accounts, and wrong passwords are all reported
// as [ErrInvalidCredentials]; the caller cannot probe which accounts exist.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()

	acct, err := e.authenticate(ctx, email, pass, now)
	if err != nil {
		return nil, err
	}

	enrolled, err := e.mfaEnabled(ctx, acct.ID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		e.metricInc(MetricMFARequired)
		return nil, ErrMFARequired
	}

	return e.completeLogin(ctx, acct, now)
}

// LoginWithMFA is the second step of an MFA login: credentials are verified
// exactly as in [Engine.Login], then code is checked as a TOTP code and, if
// that fails, as a one-time backup code.
func (e *Engine) LoginWithMFA(ctx context.Context, email, pass, code string) (*LoginResult, error) {
	if err := e.mfaReady(); err != nil {
		return nil, err
	}
	now := e.now()

	acct, err := e.authenticate(ctx, email, pass, now)
	if err != nil {
		return nil, err
	}

	enrollment, err := e.mfaStore.Enrollment(ctx, acct.ID)
	switch {
	case errors.Is(err, ErrNotEnrolled):
		// MFA was disabled between the challenge and the retry; the password
		// alone now suffices.
		return e.completeLogin(ctx, acct, now)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if enrollment.State != MFAEnabled {
		return e.completeLogin(ctx, acct, now)
	}

	if err := e.verifyEnrollment(ctx, enrollment, code, now); err != nil {
		return nil, err
	}

	return e.completeLogin(ctx, acct, now)
}

// authenticate runs the password-side lockout state machine. It returns the
// account only when the password verified and the account is active and not
// locked; every failure path has already emitted its metric and audit event.
func (e *Engine) authenticate(ctx context.Context, email, pass string, now time.Time) (*Account, error) {
	if pass == "" {
		// Rejected before any lookup; an empty submission neither reveals
		// whether the account exists nor advances its failure counter.
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditActionLoginFailed, auditResourceAccount, "", ErrInvalidCredentials, map[string]string{
			"email": email,
		})
		return nil, ErrInvalidCredentials
	}

	acct, err := e.creds.AccountByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditActionLoginFailed, auditResourceAccount, "", ErrInvalidCredentials, map[string]string{
			"email": email,
		})
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if acct.Locked(now) {
		lockErr := &AccountLockedError{RetryAfter: acct.LockedUntil.Sub(now)}
		e.metricInc(MetricLoginLocked)
		e.emitAudit(ctx, auditActionLoginFailed, auditResourceAccount, acct.ID, lockErr, nil)
		return nil, lockErr
	}
	if acct.LockedUntil != nil {
		// Window passed; expiry is lazy, so clear it on this first attempt.
		if err := e.creds.ClearLock(ctx, acct.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		acct.FailedAttempts = 0
		acct.LockedUntil = nil
	}

	if !acct.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditActionLoginFailed, auditResourceAccount, acct.ID, ErrInvalidCredentials, map[string]string{
			"reason": "inactive",
		})
		return nil, ErrInvalidCredentials
	}

	// An empty hash (passwordless account) verifies false like any mismatch.
	if !e.hasher.Verify(pass, acct.PasswordHash) {
		return nil, e.recordLoginFailure(ctx, acct, now)
	}

	return acct, nil
}

// recordLoginFailure counts a wrong password and locks the account when the
// attempt crosses the threshold. The crossing attempt records a single
// account.locked event, not a login.failed plus a lock.
func (e *Engine) recordLoginFailure(ctx context.Context, acct *Account, now time.Time) error {
	attempts, err := e.creds.RecordFailure(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if attempts >= e.config.Lockout.MaxAttempts {
		until := now.Add(e.config.Lockout.Duration)
		if err := e.creds.Lock(ctx, acct.ID, until); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		lockErr := &AccountLockedError{RetryAfter: e.config.Lockout.Duration}
		e.metricInc(MetricAccountLocked)
		e.emitAudit(ctx, auditActionAccountLocked, auditResourceAccount, acct.ID, lockErr, map[string]string{
			"failed_attempts": strconv.Itoa(attempts),
		})
		return lockErr
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditActionLoginFailed, auditResourceAccount, acct.ID, ErrInvalidCredentials, map[string]string{
		"failed_attempts": strconv.Itoa(attempts),
	})
	return ErrInvalidCredentials
}

// completeLogin records the successful attempt and issues the token pair,
// all against the operation's single now.
func (e *Engine) completeLogin(ctx context.Context, acct *Account, now time.Time) (*LoginResult, error) {
	if err := e.creds.RecordSuccess(ctx, acct.ID, now, clientIPFromContext(ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	access, err := e.tokens.IssueAccess(acct.ID, now)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.IssueRefresh(acct.ID, now)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditActionLoginSuccess, auditResourceAccount, acct.ID, nil, nil)

	return &LoginResult{AccessToken: access, RefreshToken: refresh}, nil
}

// mfaEnabled reports whether the account has an enabled enrollment. A
// missing or pending enrollment means the password alone suffices.
func (e *Engine) mfaEnabled(ctx context.Context, accountID string) (bool, error) {
	if e.mfaStore == nil {
		return false, nil
	}

	enrollment, err := e.mfaStore.Enrollment(ctx, accountID)
	if errors.Is(err, ErrNotEnrolled) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return enrollment.State == MFAEnabled, nil
}
