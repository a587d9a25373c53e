package authcore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	backupCodeBytes  = 6 // 12 hex chars, shown as xxxx-xxxx-xxxx
	backupCodeGroups = 3
	backupCodeGroup  = 4
)

// RegenerateBackupCodes replaces the account's entire backup-code set with a
// fresh one, invalidating every unused code. The caller must present a valid
// TOTP code; a backup code cannot mint its own replacements. The swap is
// version-guarded, so a concurrent consume or regeneration surfaces as
// [ErrCodesConflict] instead of silently resurrecting a spent code.
func (e *Engine) RegenerateBackupCodes(ctx context.Context, accountID, code string) ([]string, error) {
	if err := e.mfaReady(); err != nil {
		return nil, err
	}
	now := e.now()

	enrollment, err := e.loadEnrollment(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if enrollment.State != MFAEnabled {
		return nil, ErrNotEnrolled
	}

	if err := e.verifyTOTP(ctx, enrollment, code, now); err != nil {
		return nil, err
	}

	codes, records, err := e.newBackupCodes(accountID)
	if err != nil {
		return nil, err
	}

	if err := e.mfaStore.ReplaceBackupCodes(ctx, accountID, enrollment.CodesVersion, records); err != nil {
		if errors.Is(err, ErrCodesConflict) {
			return nil, ErrCodesConflict
		}
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricBackupCodesRegenerated)
	e.emitAudit(ctx, auditActionBackupCodesReplace, auditResourceMFA, accountID, nil, nil)

	return codes, nil
}

// newBackupCodes draws a full set of codes and returns both the plaintexts
// for one-time display and the hash records for storage.
func (e *Engine) newBackupCodes(accountID string) ([]string, []BackupCodeRecord, error) {
	count := e.config.TOTP.BackupCodeCount
	codes := make([]string, 0, count)
	records := make([]BackupCodeRecord, 0, count)

	for i := 0; i < count; i++ {
		raw := make([]byte, backupCodeBytes)
		if _, err := io.ReadFull(rand.Reader, raw); err != nil {
			return nil, nil, err
		}

		code := formatBackupCode(hex.EncodeToString(raw))
		hash, ok := backupCodeHash(accountID, code)
		if !ok {
			return nil, nil, fmt.Errorf("generated malformed backup code %q", code)
		}

		codes = append(codes, code)
		records = append(records, BackupCodeRecord{Hash: hash})
	}

	return codes, records, nil
}

func formatBackupCode(canonical string) string {
	groups := make([]string, 0, backupCodeGroups)
	for i := 0; i < len(canonical); i += backupCodeGroup {
		groups = append(groups, canonical[i:i+backupCodeGroup])
	}
	return strings.Join(groups, "-")
}

// canonicalizeBackupCode lowercases the input and strips separators; only a
// string of exactly 12 hex characters survives.
func canonicalizeBackupCode(code string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(code))
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")

	if len(cleaned) != backupCodeBytes*2 {
		return "", false
	}
	for _, r := range cleaned {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return "", false
		}
	}
	return cleaned, true
}

// backupCodeHash derives the stored digest for a code. The account ID salts
// the hash so identical codes on different accounts never collide in
// storage, and a leaked hash set is useless against other accounts.
func backupCodeHash(accountID, code string) ([32]byte, bool) {
	canonical, ok := canonicalizeBackupCode(code)
	if !ok {
		return [32]byte{}, false
	}

	h := sha256.New()
	h.Write([]byte(accountID))
	h.Write([]byte{0})
	h.Write([]byte(canonical))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, true
}
