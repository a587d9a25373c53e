package authcore

import (
	"errors"
	"time"
)

// Config collects all engine settings. Configure once, pass to
// [Builder.WithConfig]; the engine clones it at build time and treats it as
// immutable afterwards.
type Config struct {
	Token    TokenConfig
	Password PasswordConfig
	Lockout  LockoutConfig
	TOTP     TOTPConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// TokenConfig configures the signed token service. Secret is the process-wide
// HS256 signing key, fixed at build time; rotating it invalidates every
// outstanding token.
type TokenConfig struct {
	Secret     []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// PasswordConfig holds Argon2id parameters and the strength policy applied
// to new passwords.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	// RejectCommon refuses passwords from a short list of the most common
	// choices even when they satisfy the class requirements.
	RejectCommon bool
}

// LockoutConfig governs the brute-force lockout state machine.
type LockoutConfig struct {
	// MaxAttempts is the failed-attempt count at which the account locks.
	MaxAttempts int
	// Duration is the lockout window; expiry is lazy, observed by the next
	// login attempt rather than by a background sweep.
	Duration time.Duration
}

// TOTPConfig configures the MFA engine. The MFA failure lockout is tracked
// per enrollment and is independent of the password lockout.
type TOTPConfig struct {
	Issuer     string
	Digits     int
	Period     int // seconds per step
	Skew       int // accepted steps of clock drift in either direction
	SecretSize int // bytes of secret entropy

	BackupCodeCount int

	MaxAttempts     int
	LockoutDuration time.Duration

	// QRCodeSize is the rendered QR image edge in pixels; 0 disables image
	// rendering (the provisioning URI is always returned).
	QRCodeSize int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of waiting for buffer space. Either
	// way the calling security operation is never blocked by a slow sink.
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			Issuer:     "sscn",
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        2,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,

			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireDigit:     true,
			RequireSpecial:   false,
			RejectCommon:     true,
		},
		Lockout: LockoutConfig{
			MaxAttempts: 5,
			Duration:    15 * time.Minute,
		},
		TOTP: TOTPConfig{
			Issuer:          "SSCN",
			Digits:          6,
			Period:          30,
			Skew:            1,
			SecretSize:      20,
			BackupCodeCount: 10,
			MaxAttempts:     5,
			LockoutDuration: 15 * time.Minute,
			QRCodeSize:      200,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// DefaultConfig returns the production defaults: 30-minute access tokens,
// 24-hour refresh tokens, 5-attempt/15-minute lockouts on both the password
// and MFA paths, 6-digit TOTP with one step of drift tolerance, and 10
// backup codes. Token.Secret must still be set by the caller.
func DefaultConfig() Config {
	return defaultConfig()
}

// Validate rejects configurations the engine cannot run safely.
func (c *Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("token secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("refresh TTL must exceed access TTL")
	}
	if c.Lockout.MaxAttempts < 1 {
		return errors.New("lockout max attempts must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("lockout duration must be positive")
	}
	if c.TOTP.Digits < 6 || c.TOTP.Digits > 8 {
		return errors.New("totp digits must be between 6 and 8")
	}
	if c.TOTP.Period < 15 {
		return errors.New("totp period must be >= 15 seconds")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("totp skew must be between 0 and 2 steps")
	}
	if c.TOTP.SecretSize < 16 {
		return errors.New("totp secret must be at least 16 bytes")
	}
	if c.TOTP.BackupCodeCount < 1 {
		return errors.New("backup code count must be >= 1")
	}
	if c.TOTP.MaxAttempts < 1 {
		return errors.New("mfa max attempts must be >= 1")
	}
	if c.TOTP.LockoutDuration <= 0 {
		return errors.New("mfa lockout duration must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 1 {
		return errors.New("audit buffer size must be >= 1 when audit is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.Secret = cloneBytes(cfg.Token.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
