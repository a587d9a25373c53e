package memstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sscn-platform/authcore"
)

// Credentials is a mutex-guarded in-memory [authcore.CredentialStore].
type Credentials struct {
	mu      sync.RWMutex
	byID    map[string]*authcore.Account
	byEmail map[string]string // lowercased email -> account ID
}

// NewCredentials returns an empty credential store.
func NewCredentials() *Credentials {
	return &Credentials{
		byID:    make(map[string]*authcore.Account),
		byEmail: make(map[string]string),
	}
}

// PutAccount inserts or replaces an account. Email lookups are
// case-insensitive.
func (s *Credentials) PutAccount(acct *authcore.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.byID[acct.ID]; ok {
		delete(s.byEmail, strings.ToLower(prior.Email))
	}
	cp := cloneAccount(acct)
	s.byID[cp.ID] = cp
	s.byEmail[strings.ToLower(cp.Email)] = cp.ID
}

// AccountByID implements [authcore.CredentialStore].
func (s *Credentials) AccountByID(_ context.Context, id string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.byID[id]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	return cloneAccount(acct), nil
}

// AccountByEmail implements [authcore.CredentialStore].
func (s *Credentials) AccountByEmail(_ context.Context, email string) (*authcore.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, authcore.ErrAccountNotFound
	}
	return cloneAccount(s.byID[id]), nil
}

// RecordFailure implements [authcore.CredentialStore].
func (s *Credentials) RecordFailure(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return 0, authcore.ErrAccountNotFound
	}
	acct.FailedAttempts++
	return acct.FailedAttempts, nil
}

// Lock implements [authcore.CredentialStore].
func (s *Credentials) Lock(_ context.Context, id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return authcore.ErrAccountNotFound
	}
	u := until
	acct.LockedUntil = &u
	return nil
}

// ClearLock implements [authcore.CredentialStore].
func (s *Credentials) ClearLock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return authcore.ErrAccountNotFound
	}
	acct.FailedAttempts = 0
	acct.LockedUntil = nil
	return nil
}

// RecordSuccess implements [authcore.CredentialStore].
func (s *Credentials) RecordSuccess(_ context.Context, id string, at time.Time, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return authcore.ErrAccountNotFound
	}
	acct.FailedAttempts = 0
	acct.LockedUntil = nil
	t := at
	acct.LastLoginAt = &t
	acct.LastLoginIP = ip
	return nil
}

// UpdatePasswordHash implements [authcore.CredentialStore].
func (s *Credentials) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return authcore.ErrAccountNotFound
	}
	acct.PasswordHash = hash
	return nil
}

func cloneAccount(acct *authcore.Account) *authcore.Account {
	cp := *acct
	if acct.LockedUntil != nil {
		t := *acct.LockedUntil
		cp.LockedUntil = &t
	}
	if acct.LastLoginAt != nil {
		t := *acct.LastLoginAt
		cp.LastLoginAt = &t
	}
	return &cp
}
