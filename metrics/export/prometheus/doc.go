// Package prometheus renders engine counters in Prometheus text exposition
// format, without a client-library dependency.
package prometheus
