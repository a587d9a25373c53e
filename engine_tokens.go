package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/sscn-platform/authcore/token"
)

// Refresh exchanges a valid refresh token for a fresh token pair. The
// account must still exist and be active at exchange time; an access token
// presented here is rejected as invalid, never honored.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	now := e.now()

	claims, err := e.tokens.VerifyRefresh(refreshToken, now)
	if err != nil {
		mapped := mapTokenError(err)
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditActionRefreshRejected, auditResourceToken, "", mapped, nil)
		return nil, mapped
	}

	acct, err := e.creds.AccountByID(ctx, claims.AccountID())
	if errors.Is(err, ErrAccountNotFound) {
		// The subject no longer exists; report the token invalid rather than
		// confirming the deletion.
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditActionRefreshRejected, auditResourceToken, claims.AccountID(), ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !acct.Active {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditActionRefreshRejected, auditResourceToken, acct.ID, ErrTokenInvalid, map[string]string{
			"reason": "inactive",
		})
		return nil, ErrTokenInvalid
	}

	access, err := e.tokens.IssueAccess(acct.ID, now)
	if err != nil {
		return nil, err
	}
	refresh, err := e.tokens.IssueRefresh(acct.ID, now)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditActionTokenRefreshed, auditResourceToken, acct.ID, nil, nil)

	return &LoginResult{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess validates an access token and returns the account ID it was
// issued to. Verification is stateless: no store lookup, no audit event,
// suitable for every request on the hot path.
func (e *Engine) VerifyAccess(_ context.Context, accessToken string) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}

	claims, err := e.tokens.VerifyAccess(accessToken, e.now())
	if err != nil {
		return "", mapTokenError(err)
	}
	return claims.AccountID(), nil
}

func mapTokenError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}
