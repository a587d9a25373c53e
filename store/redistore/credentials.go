package redistore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sscn-platform/authcore"
)

const keyPrefix = "authcore"

// Credentials is a Redis-backed [authcore.CredentialStore]. Each account is
// one hash plus an email index key; counter updates ride on HINCRBY, so two
// processes recording failures concurrently still observe distinct counts.
type Credentials struct {
	redis redis.UniversalClient
}

// NewCredentials wraps client.
func NewCredentials(client redis.UniversalClient) *Credentials {
	return &Credentials{redis: client}
}

func accountKey(id string) string {
	return keyPrefix + ":acct:" + id
}

func emailKey(email string) string {
	return keyPrefix + ":acct:email:" + strings.ToLower(email)
}

// PutAccount creates or replaces an account and its email index entry.
func (s *Credentials) PutAccount(ctx context.Context, acct *authcore.Account) error {
	fields := map[string]any{
		"email":           acct.Email,
		"password_hash":   acct.PasswordHash,
		"active":          boolField(acct.Active),
		"failed_attempts": acct.FailedAttempts,
		"last_login_ip":   acct.LastLoginIP,
	}
	if acct.LockedUntil != nil {
		fields["locked_until"] = acct.LockedUntil.UnixNano()
	}
	if acct.LastLoginAt != nil {
		fields["last_login_at"] = acct.LastLoginAt.UnixNano()
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, accountKey(acct.ID))
	pipe.HSet(ctx, accountKey(acct.ID), fields)
	pipe.Set(ctx, emailKey(acct.Email), acct.ID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	return nil
}

// AccountByID implements [authcore.CredentialStore].
func (s *Credentials) AccountByID(ctx context.Context, id string) (*authcore.Account, error) {
	fields, err := s.redis.HGetAll(ctx, accountKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	if len(fields) == 0 {
		return nil, authcore.ErrAccountNotFound
	}
	return decodeAccount(id, fields)
}

// AccountByEmail implements [authcore.CredentialStore].
func (s *Credentials) AccountByEmail(ctx context.Context, email string) (*authcore.Account, error) {
	id, err := s.redis.Get(ctx, emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, authcore.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve email: %w", err)
	}
	return s.AccountByID(ctx, id)
}

// RecordFailure implements [authcore.CredentialStore].
func (s *Credentials) RecordFailure(ctx context.Context, id string) (int, error) {
	count, err := s.redis.HIncrBy(ctx, accountKey(id), "failed_attempts", 1).Result()
	if err != nil {
		return 0, fmt.Errorf("record failure: %w", err)
	}
	return int(count), nil
}

// Lock implements [authcore.CredentialStore].
func (s *Credentials) Lock(ctx context.Context, id string, until time.Time) error {
	if err := s.redis.HSet(ctx, accountKey(id), "locked_until", until.UnixNano()).Err(); err != nil {
		return fmt.Errorf("lock account: %w", err)
	}
	return nil
}

// ClearLock implements [authcore.CredentialStore].
func (s *Credentials) ClearLock(ctx context.Context, id string) error {
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, accountKey(id), "failed_attempts", 0)
	pipe.HDel(ctx, accountKey(id), "locked_until")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear lock: %w", err)
	}
	return nil
}

// RecordSuccess implements [authcore.CredentialStore].
func (s *Credentials) RecordSuccess(ctx context.Context, id string, at time.Time, ip string) error {
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, accountKey(id),
		"failed_attempts", 0,
		"last_login_at", at.UnixNano(),
		"last_login_ip", ip,
	)
	pipe.HDel(ctx, accountKey(id), "locked_until")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record success: %w", err)
	}
	return nil
}

// UpdatePasswordHash implements [authcore.CredentialStore].
func (s *Credentials) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if err := s.redis.HSet(ctx, accountKey(id), "password_hash", hash).Err(); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return nil
}

func decodeAccount(id string, fields map[string]string) (*authcore.Account, error) {
	acct := &authcore.Account{
		ID:           id,
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
		Active:       fields["active"] == "1",
		LastLoginIP:  fields["last_login_ip"],
	}

	if v := fields["failed_attempts"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt failed_attempts for account %s: %q", id, v)
		}
		acct.FailedAttempts = n
	}

	var err error
	if acct.LockedUntil, err = timeField(fields, "locked_until"); err != nil {
		return nil, fmt.Errorf("corrupt locked_until for account %s", id)
	}
	if acct.LastLoginAt, err = timeField(fields, "last_login_at"); err != nil {
		return nil, fmt.Errorf("corrupt last_login_at for account %s", id)
	}

	return acct, nil
}

func timeField(fields map[string]string, name string) (*time.Time, error) {
	v, ok := fields[name]
	if !ok || v == "" {
		return nil, nil
	}
	nanos, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, err
	}
	t := time.Unix(0, nanos)
	return &t, nil
}

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
