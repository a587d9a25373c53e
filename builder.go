package authcore

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sscn-platform/authcore/password"
	"github.com/sscn-platform/authcore/token"
)

// Builder assembles an [Engine]. A builder is single-use: Build consumes it.
type Builder struct {
	config Config

	creds     CredentialStore
	mfaStore  MFAStore
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with [DefaultConfig]. Token.Secret and both
// stores must still be supplied before Build.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithTokenSecret sets the HS256 signing key.
func (b *Builder) WithTokenSecret(secret []byte) *Builder {
	b.config.Token.Secret = cloneBytes(secret)
	return b
}

// WithCredentialStore sets the account persistence backend.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.creds = store
	return b
}

// WithMFAStore sets the MFA enrollment persistence backend.
func (b *Builder) WithMFAStore(store MFAStore) *Builder {
	b.mfaStore = store
	return b
}

// WithAuditSink sets the destination for security events. Without a sink,
// events enabled by config go to [NoOpSink].
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires every subsystem, and starts the
// audit dispatcher. The returned Engine owns the dispatcher goroutine;
// release it with [Engine.Close].
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.creds == nil {
		return nil, errors.New("credential store required")
	}
	if b.mfaStore == nil {
		return nil, errors.New("mfa store required")
	}

	hasher, err := password.NewArgon2(password.Params{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     cfg.Token.Secret,
		Issuer:     cfg.Token.Issuer,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		creds:    b.creds,
		mfaStore: b.mfaStore,
		tokens:   tokens,
		hasher:   hasher,
		policy: password.Policy{
			MinLength:        cfg.Password.MinLength,
			RequireUppercase: cfg.Password.RequireUppercase,
			RequireLowercase: cfg.Password.RequireLowercase,
			RequireDigit:     cfg.Password.RequireDigit,
			RequireSpecial:   cfg.Password.RequireSpecial,
			RejectCommon:     cfg.Password.RejectCommon,
		},
		totp:       newTOTPManager(cfg.TOTP),
		metrics:    NewMetrics(cfg.Metrics),
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		now:        time.Now,
		newEventID: uuid.NewString,
	}

	b.built = true
	return engine, nil
}
