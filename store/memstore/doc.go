// Package memstore provides in-memory implementations of the authcore store
// contracts, suitable for tests and single-process deployments. All state is
// lost on restart.
package memstore
