package redistore

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sscn-platform/authcore"
)

// consumeCodeScript removes one backup-code hash and bumps the set version
// only when the code was actually present, as a single atomic step.
var consumeCodeScript = redis.NewScript(`
local removed = redis.call('SREM', KEYS[1], ARGV[1])
if removed == 1 then
  redis.call('HINCRBY', KEYS[2], 'codes_version', 1)
end
return removed
`)

// replaceCodesScript swaps the whole backup-code set, guarded by the version
// the caller read. Returns -1 when the enrollment is gone, 0 on a version
// conflict, 1 on success.
var replaceCodesScript = redis.NewScript(`
local version = redis.call('HGET', KEYS[1], 'codes_version')
if not version then
  return -1
end
if version ~= ARGV[1] then
  return 0
end
redis.call('DEL', KEYS[2])
for i = 2, #ARGV do
  redis.call('SADD', KEYS[2], ARGV[i])
end
redis.call('HINCRBY', KEYS[1], 'codes_version', 1)
return 1
`)

// MFA is a Redis-backed [authcore.MFAStore]. The enrollment hash holds the
// secret and counters; backup-code hashes live in a sibling set keyed by
// account so one code's consumption never rewrites the rest.
type MFA struct {
	redis redis.UniversalClient
}

// NewMFA wraps client.
func NewMFA(client redis.UniversalClient) *MFA {
	return &MFA{redis: client}
}

func enrollmentKey(accountID string) string {
	return keyPrefix + ":mfa:" + accountID
}

func codesKey(accountID string) string {
	return keyPrefix + ":mfa:codes:" + accountID
}

// Enrollment implements [authcore.MFAStore].
func (s *MFA) Enrollment(ctx context.Context, accountID string) (*authcore.MFAEnrollment, error) {
	fields, err := s.redis.HGetAll(ctx, enrollmentKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get enrollment: %w", err)
	}
	if len(fields) == 0 {
		return nil, authcore.ErrNotEnrolled
	}

	codes, err := s.redis.SMembers(ctx, codesKey(accountID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get backup codes: %w", err)
	}

	return decodeEnrollment(accountID, fields, codes)
}

// PutEnrollment implements [authcore.MFAStore].
func (s *MFA) PutEnrollment(ctx context.Context, enrollment *authcore.MFAEnrollment) error {
	fields := map[string]any{
		"secret":          enrollment.Secret,
		"state":           int(enrollment.State),
		"codes_version":   enrollment.CodesVersion,
		"failed_attempts": enrollment.FailedAttempts,
	}
	if enrollment.LockedUntil != nil {
		fields["locked_until"] = enrollment.LockedUntil.UnixNano()
	}
	if enrollment.LastUsedAt != nil {
		fields["last_used_at"] = enrollment.LastUsedAt.UnixNano()
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, enrollmentKey(enrollment.AccountID), codesKey(enrollment.AccountID))
	pipe.HSet(ctx, enrollmentKey(enrollment.AccountID), fields)
	if len(enrollment.BackupCodes) > 0 {
		members := make([]any, 0, len(enrollment.BackupCodes))
		for _, record := range enrollment.BackupCodes {
			members = append(members, hex.EncodeToString(record.Hash[:]))
		}
		pipe.SAdd(ctx, codesKey(enrollment.AccountID), members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put enrollment: %w", err)
	}
	return nil
}

// DeleteEnrollment implements [authcore.MFAStore].
func (s *MFA) DeleteEnrollment(ctx context.Context, accountID string) error {
	if err := s.redis.Del(ctx, enrollmentKey(accountID), codesKey(accountID)).Err(); err != nil {
		return fmt.Errorf("delete enrollment: %w", err)
	}
	return nil
}

// RecordFailure implements [authcore.MFAStore].
func (s *MFA) RecordFailure(ctx context.Context, accountID string) (int, error) {
	count, err := s.redis.HIncrBy(ctx, enrollmentKey(accountID), "failed_attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("record mfa failure: %w", err)
	}
	return int(count), nil
}

// Lock implements [authcore.MFAStore].
func (s *MFA) Lock(ctx context.Context, accountID string, until time.Time) error {
	if err := s.redis.HSet(ctx, enrollmentKey(accountID), "locked_until", until.UnixNano()).Err(); err != nil {
		return fmt.Errorf("lock enrollment: %w", err)
	}
	return nil
}

// ClearLock implements [authcore.MFAStore].
func (s *MFA) ClearLock(ctx context.Context, accountID string) error {
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, enrollmentKey(accountID), "failed_attempts", 0)
	pipe.HDel(ctx, enrollmentKey(accountID), "locked_until")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear mfa lock: %w", err)
	}
	return nil
}

// RecordSuccess implements [authcore.MFAStore].
func (s *MFA) RecordSuccess(ctx context.Context, accountID string, at time.Time) error {
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, enrollmentKey(accountID),
		"failed_attempts", 0,
		"last_used_at", at.UnixNano(),
	)
	pipe.HDel(ctx, enrollmentKey(accountID), "locked_until")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record mfa success: %w", err)
	}
	return nil
}

// ConsumeBackupCode implements [authcore.MFAStore].
func (s *MFA) ConsumeBackupCode(ctx context.Context, accountID string, hash [32]byte) (bool, error) {
	removed, err := consumeCodeScript.Run(ctx, s.redis,
		[]string{codesKey(accountID), enrollmentKey(accountID)},
		hex.EncodeToString(hash[:]),
	).Int()
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return removed == 1, nil
}

// ReplaceBackupCodes implements [authcore.MFAStore].
func (s *MFA) ReplaceBackupCodes(ctx context.Context, accountID string, priorVersion uint64, codes []authcore.BackupCodeRecord) error {
	args := make([]any, 0, len(codes)+1)
	args = append(args, strconv.FormatUint(priorVersion, 10))
	for _, record := range codes {
		args = append(args, hex.EncodeToString(record.Hash[:]))
	}

	result, err := replaceCodesScript.Run(ctx, s.redis,
		[]string{enrollmentKey(accountID), codesKey(accountID)},
		args...,
	).Int()
	if err != nil {
		return fmt.Errorf("replace backup codes: %w", err)
	}

	switch result {
	case 1:
		return nil
	case 0:
		return authcore.ErrCodesConflict
	default:
		return authcore.ErrNotEnrolled
	}
}

func decodeEnrollment(accountID string, fields map[string]string, codes []string) (*authcore.MFAEnrollment, error) {
	enrollment := &authcore.MFAEnrollment{
		AccountID: accountID,
		Secret:    fields["secret"],
	}

	state, err := strconv.Atoi(fields["state"])
	if err != nil {
		return nil, fmt.Errorf("corrupt state for enrollment %s", accountID)
	}
	enrollment.State = authcore.MFAState(state)

	if v := fields["codes_version"]; v != "" {
		version, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt codes_version for enrollment %s", accountID)
		}
		enrollment.CodesVersion = version
	}
	if v := fields["failed_attempts"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt failed_attempts for enrollment %s", accountID)
		}
		enrollment.FailedAttempts = n
	}

	if enrollment.LockedUntil, err = timeField(fields, "locked_until"); err != nil {
		return nil, fmt.Errorf("corrupt locked_until for enrollment %s", accountID)
	}
	if enrollment.LastUsedAt, err = timeField(fields, "last_used_at"); err != nil {
		return nil, fmt.Errorf("corrupt last_used_at for enrollment %s", accountID)
	}

	enrollment.BackupCodes = make([]authcore.BackupCodeRecord, 0, len(codes))
	for _, member := range codes {
		raw, err := hex.DecodeString(member)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("corrupt backup code hash for enrollment %s", accountID)
		}
		var record authcore.BackupCodeRecord
		copy(record.Hash[:], raw)
		enrollment.BackupCodes = append(enrollment.BackupCodes, record)
	}

	return enrollment, nil
}
