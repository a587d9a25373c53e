// Package otel bridges engine counters to OpenTelemetry observable
// instruments; counts are pulled from a snapshot at collection time.
package otel
