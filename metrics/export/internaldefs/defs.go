package internaldefs

import (
	authcore "github.com/sscn-platform/authcore"
)

// CounterDef binds an engine counter to its exported name and help text.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs lists every engine counter in export order.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Login attempts rejected while the account lockout was active."},
	{ID: authcore.MetricAccountLocked, Name: "authcore_account_locked_total", Help: "Accounts locked after exceeding the failed-attempt threshold."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful token refreshes."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Rejected token refreshes."},
	{ID: authcore.MetricMFARequired, Name: "authcore_mfa_required_total", Help: "Logins deferred pending an MFA code."},
	{ID: authcore.MetricMFASuccess, Name: "authcore_mfa_success_total", Help: "Successful TOTP verifications."},
	{ID: authcore.MetricMFAFailure, Name: "authcore_mfa_failure_total", Help: "Failed MFA verifications."},
	{ID: authcore.MetricMFALocked, Name: "authcore_mfa_locked_total", Help: "MFA verifications rejected by the MFA lockout."},
	{ID: authcore.MetricMFAEnabled, Name: "authcore_mfa_enabled_total", Help: "Enrollments confirmed and enabled."},
	{ID: authcore.MetricMFADisabled, Name: "authcore_mfa_disabled_total", Help: "Enrollments disabled."},
	{ID: authcore.MetricBackupCodeUsed, Name: "authcore_backup_code_used_total", Help: "Successful backup-code authentications."},
	{ID: authcore.MetricBackupCodesRegenerated, Name: "authcore_backup_codes_regenerated_total", Help: "Backup-code set regenerations."},
	{ID: authcore.MetricPasswordChangeSuccess, Name: "authcore_password_change_success_total", Help: "Successful password changes."},
	{ID: authcore.MetricPasswordChangeFailure, Name: "authcore_password_change_failure_total", Help: "Rejected password changes."},
}
