package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	// Cheap argon2 parameters; production costs would dominate the test run.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

type testEnv struct {
	engine *Engine
	creds  *fakeCredentials
	mfa    *fakeMFAStore
	sink   *ChannelSink
}

func newTestEngine(t *testing.T, cfg Config) (*testEnv, func()) {
	t.Helper()

	creds := newFakeCredentials()
	mfa := newFakeMFAStore()
	sink := NewChannelSink(128)

	engine, err := New().
		WithConfig(cfg).
		WithCredentialStore(creds).
		WithMFAStore(mfa).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("build engine failed: %v", err)
	}
	engine.now = func() time.Time { return testNow }
	engine.newEventID = func() string { return "evt-test" }

	env := &testEnv{engine: engine, creds: creds, mfa: mfa, sink: sink}
	return env, engine.Close
}

func (env *testEnv) advance(d time.Duration) {
	base := env.engine.now()
	env.engine.now = func() time.Time { return base.Add(d) }
}

func (env *testEnv) seedAccount(t *testing.T, id, email, pass string) {
	t.Helper()

	hash, err := env.engine.hasher.Hash(pass)
	if err != nil {
		t.Fatalf("hash password failed: %v", err)
	}
	env.creds.PutAccount(&Account{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	})
}

// enrollMFA runs setup and enable for the account and returns the secret and
// the plaintext backup codes.
func (env *testEnv) enrollMFA(t *testing.T, accountID string) (string, []string) {
	t.Helper()

	setup, err := env.engine.SetupMFA(context.Background(), accountID)
	if err != nil {
		t.Fatalf("SetupMFA failed: %v", err)
	}
	if err := env.engine.EnableMFA(context.Background(), accountID, codeAt(t, setup.Secret, env.engine.now())); err != nil {
		t.Fatalf("EnableMFA failed: %v", err)
	}
	return setup.Secret, setup.BackupCodes
}

func codeAt(t *testing.T, secret string, at time.Time) string {
	t.Helper()

	code, err := totp.GenerateCode(secret, at)
	if err != nil {
		t.Fatalf("generate totp code failed: %v", err)
	}
	return code
}

// waitEvent blocks until the sink delivers an event with the given action.
// Events with other actions arriving first are discarded.
func waitEvent(t *testing.T, sink *ChannelSink, action string) AuditEvent {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case event := <-sink.Events():
			if event.Action == action {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for audit event %q", action)
		}
	}
}
