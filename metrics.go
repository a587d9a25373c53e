package authcore

import "sync/atomic"

// MetricID identifies one engine counter. IDs are dense and stable within a
// release so exporters can iterate them directly.
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginLocked
	MetricAccountLocked
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricMFARequired
	MetricMFASuccess
	MetricMFAFailure
	MetricMFALocked
	MetricMFAEnabled
	MetricMFADisabled
	MetricBackupCodeUsed
	MetricBackupCodesRegenerated
	MetricPasswordChangeSuccess
	MetricPasswordChangeFailure
	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:           "login_success_total",
	MetricLoginFailure:           "login_failure_total",
	MetricLoginLocked:            "login_locked_total",
	MetricAccountLocked:          "account_locked_total",
	MetricRefreshSuccess:         "refresh_success_total",
	MetricRefreshFailure:         "refresh_failure_total",
	MetricMFARequired:            "mfa_required_total",
	MetricMFASuccess:             "mfa_success_total",
	MetricMFAFailure:             "mfa_failure_total",
	MetricMFALocked:              "mfa_locked_total",
	MetricMFAEnabled:             "mfa_enabled_total",
	MetricMFADisabled:            "mfa_disabled_total",
	MetricBackupCodeUsed:         "backup_code_used_total",
	MetricBackupCodesRegenerated: "backup_codes_regenerated_total",
	MetricPasswordChangeSuccess:  "password_change_success_total",
	MetricPasswordChangeFailure:  "password_change_failure_total",
}

// Name returns the exporter-facing counter name, or "" for unknown IDs.
func (id MetricID) Name() string {
	if id >= metricIDCount {
		return ""
	}
	return metricNames[id]
}

// MetricIDs returns every counter ID in iteration order, for exporters.
func MetricIDs() []MetricID {
	ids := make([]MetricID, metricIDCount)
	for i := range ids {
		ids[i] = MetricID(i)
	}
	return ids
}

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a set of in-process counters incremented on the engine's hot
// paths. Counters are lock-free; exporters under metrics/export translate a
// Snapshot into Prometheus text or OpenTelemetry instruments.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a counter set; a disabled set accepts Inc calls and
// stays at zero.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter. Unknown IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter. Unknown IDs are ignored.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Value returns the current count for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter under atomic loads.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	if m == nil || !m.enabled {
		return s
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
