package authcore

import (
	"context"
	"errors"
)

// Audit actions, one per observable security transition. A single operation
// emits exactly one event: a failed login that crosses the lockout threshold
// records account.locked, not login.failed plus account.locked.
const (
	auditActionLoginSuccess    = "login.success"
	auditActionLoginFailed     = "login.failed"
	auditActionAccountLocked   = "account.locked"
	auditActionTokenRefreshed  = "token.refreshed"
	auditActionRefreshRejected = "token.refresh_rejected"

	auditActionMFASetup           = "mfa.setup"
	auditActionMFAEnabled         = "mfa.enabled"
	auditActionMFADisabled        = "mfa.disabled"
	auditActionMFAVerified        = "mfa.verified"
	auditActionMFAFailed          = "mfa.failed"
	auditActionMFALocked          = "mfa.locked"
	auditActionBackupCodeUsed     = "mfa.backup_code_used"
	auditActionBackupCodesReplace = "mfa.backup_codes_regenerated"

	auditActionPasswordChanged      = "password.changed"
	auditActionPasswordChangeFailed = "password.change_failed"
)

// Audit resources.
const (
	auditResourceAccount = "account"
	auditResourceToken   = "token"
	auditResourceMFA     = "mfa"
)

// auditErrorCode maps engine errors to the stable short codes recorded on
// failure events.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrAccountLocked):
		return "account_locked"
	case errors.Is(err, ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, ErrMFARequired):
		return "mfa_required"
	case errors.Is(err, ErrMFAInvalidCode):
		return "mfa_invalid_code"
	case errors.Is(err, ErrMFALocked):
		return "mfa_locked"
	case errors.Is(err, ErrMFAAlreadyEnabled):
		return "mfa_already_enabled"
	case errors.Is(err, ErrNotEnrolled):
		return "mfa_not_enrolled"
	case errors.Is(err, ErrPasswordPolicy):
		return "password_policy"
	case errors.Is(err, ErrPasswordReuse):
		return "password_reuse"
	case errors.Is(err, ErrCodesConflict):
		return "backup_codes_conflict"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal_error"
	}
}

func (e *Engine) emitAudit(
	ctx context.Context,
	action string,
	resource string,
	actorID string,
	err error,
	metadata map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		ID:        e.newEventID(),
		Timestamp: e.now().UTC(),
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Status:    AuditStatusSuccess,
		IP:        clientIPFromContext(ctx),
		Metadata:  metadata,
	}
	if err != nil {
		event.Status = AuditStatusFailure
		event.Error = auditErrorCode(err)
	}

	e.audit.Emit(ctx, event)
}
