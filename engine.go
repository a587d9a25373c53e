package authcore

import (
	"time"

	"github.com/sscn-platform/authcore/password"
	"github.com/sscn-platform/authcore/token"
)

// Engine is the authentication core. Construct one through [New] and
// [Builder.Build]; all methods are safe for concurrent use afterwards.
//
// Every operation reads the clock once at entry and threads that instant
// through all of its checks, so a lockout decision and the token it may
// issue agree on what "now" was.
type Engine struct {
	config   Config
	creds    CredentialStore
	mfaStore MFAStore

	tokens *token.Manager
	hasher *password.Argon2
	policy password.Policy
	totp   *totpManager

	audit   *auditDispatcher
	metrics *Metrics

	// Overridable in tests; fixed to time.Now / uuid at build time.
	now        func() time.Time
	newEventID func() string
}

// Close stops the audit dispatcher after draining buffered events. The
// engine must not be used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the count of audit events shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditFailed returns the count of audit events the sink rejected.
func (e *Engine) AuditFailed() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Failed()
}

// Metrics returns the engine's counter set, nil-safe for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.creds == nil || e.tokens == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) mfaReady() error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.mfaStore == nil || e.totp == nil {
		return ErrEngineNotReady
	}
	return nil
}
