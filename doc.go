// Package authcore implements the account authentication and security
// lifecycle core of the SSCN marketplace backend: credential verification,
// brute-force lockout, signed access/refresh token issuance and rotation,
// and time-based multi-factor authentication with one-time backup codes.
//
// The package is an embeddable engine, not a server. Callers wire their own
// persistence by implementing [CredentialStore] and [MFAStore] (Redis-backed
// and in-memory implementations ship under store/), attach an [AuditSink],
// and build an [Engine] through the [Builder]. Engine methods are safe to
// call from multiple goroutines after initialization through [Builder.Build].
// All security decisions return typed errors; audit delivery is asynchronous
// and can never fail or block a decision.
package authcore
