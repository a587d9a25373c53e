package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sscn-platform/authcore/password"
)

// ChangePassword replaces the account password after re-proving the current
// one. The new password must clear the strength policy and differ from the
// current password; the stored hash is always freshly salted, so even a
// policy-identical change produces a new digest.
func (e *Engine) ChangePassword(ctx context.Context, accountID, current, next string) error {
	if err := e.ready(); err != nil {
		return err
	}

	acct, err := e.creds.AccountByID(ctx, accountID)
	if errors.Is(err, ErrAccountNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if !acct.Active || !e.hasher.Verify(current, acct.PasswordHash) {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditActionPasswordChangeFailed, auditResourceAccount, accountID, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}

	if err := e.policy.Validate(next); err != nil {
		var policyErr *password.PolicyError
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditActionPasswordChangeFailed, auditResourceAccount, accountID, ErrPasswordPolicy, nil)
		if errors.As(err, &policyErr) {
			return fmt.Errorf("%w: %s", ErrPasswordPolicy, policyErr.Error())
		}
		return ErrPasswordPolicy
	}

	if e.hasher.Verify(next, acct.PasswordHash) {
		e.metricInc(MetricPasswordChangeFailure)
		e.emitAudit(ctx, auditActionPasswordChangeFailed, auditResourceAccount, accountID, ErrPasswordReuse, nil)
		return ErrPasswordReuse
	}

	hash, err := e.hasher.Hash(next)
	if err != nil {
		return err
	}
	if err := e.creds.UpdatePasswordHash(ctx, accountID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditActionPasswordChanged, auditResourceAccount, accountID, nil, nil)
	return nil
}
