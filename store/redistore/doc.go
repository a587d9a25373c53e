// Package redistore implements the authcore store contracts on Redis.
// Accounts and MFA enrollments live in hashes; backup-code hashes live in a
// set per account, with consume and whole-set replacement scripted so the
// one-time and versioning guarantees hold across processes.
package redistore
