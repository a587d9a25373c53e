package authcore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// fakeCredentials is the in-package CredentialStore double the engine tests
// run against. Importing a shipped store implementation here would cycle back
// into this package, so the tests carry their own.
type fakeCredentials struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string // lowercased email -> account ID
}

func newFakeCredentials() *fakeCredentials {
	return &fakeCredentials{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
	}
}

func (s *fakeCredentials) PutAccount(acct *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.byID[acct.ID]; ok {
		delete(s.byEmail, strings.ToLower(prior.Email))
	}
	cp := copyAccount(acct)
	s.byID[cp.ID] = cp
	s.byEmail[strings.ToLower(cp.Email)] = cp.ID
}

func (s *fakeCredentials) AccountByID(_ context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.byID[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(acct), nil
}

func (s *fakeCredentials) AccountByEmail(_ context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return copyAccount(s.byID[id]), nil
}

func (s *fakeCredentials) RecordFailure(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return 0, ErrAccountNotFound
	}
	acct.FailedAttempts++
	return acct.FailedAttempts, nil
}

func (s *fakeCredentials) Lock(_ context.Context, id string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	u := until
	acct.LockedUntil = &u
	return nil
}

func (s *fakeCredentials) ClearLock(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.FailedAttempts = 0
	acct.LockedUntil = nil
	return nil
}

func (s *fakeCredentials) RecordSuccess(_ context.Context, id string, at time.Time, ip string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.FailedAttempts = 0
	acct.LockedUntil = nil
	t := at
	acct.LastLoginAt = &t
	acct.LastLoginIP = ip
	return nil
}

func (s *fakeCredentials) UpdatePasswordHash(_ context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return ErrAccountNotFound
	}
	acct.PasswordHash = hash
	return nil
}

func copyAccount(acct *Account) *Account {
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

// fakeMFAStore is the in-package MFAStore double for the engine tests.
type fakeMFAStore struct {
	mu          sync.RWMutex
	enrollments map[string]*MFAEnrollment
}

func newFakeMFAStore() *fakeMFAStore {
	return &fakeMFAStore{enrollments: make(map[string]*MFAEnrollment)}
}

func (s *fakeMFAStore) Enrollment(_ context.Context, accountID string) (*MFAEnrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return nil, ErrNotEnrolled
	}
	return copyEnrollment(enrollment), nil
}

func (s *fakeMFAStore) PutEnrollment(_ context.Context, enrollment *MFAEnrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enrollments[enrollment.AccountID] = copyEnrollment(enrollment)
	return nil
}

func (s *fakeMFAStore) DeleteEnrollment(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.enrollments, accountID)
	return nil
}

func (s *fakeMFAStore) RecordFailure(_ context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return 0, ErrNotEnrolled
	}
	enrollment.FailedAttempts++
	return enrollment.FailedAttempts, nil
}

func (s *fakeMFAStore) Lock(_ context.Context, accountID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return ErrNotEnrolled
	}
	u := until
	enrollment.LockedUntil = &u
	return nil
}

func (s *fakeMFAStore) ClearLock(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return ErrNotEnrolled
	}
	enrollment.FailedAttempts = 0
	enrollment.LockedUntil = nil
	return nil
}

func (s *fakeMFAStore) RecordSuccess(_ context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return ErrNotEnrolled
	}
	enrollment.FailedAttempts = 0
	enrollment.LockedUntil = nil
	t := at
	enrollment.LastUsedAt = &t
	return nil
}

func (s *fakeMFAStore) ConsumeBackupCode(_ context.Context, accountID string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return false, ErrNotEnrolled
	}

	for i, record := range enrollment.BackupCodes {
		if record.Hash == hash {
			enrollment.BackupCodes = append(enrollment.BackupCodes[:i], enrollment.BackupCodes[i+1:]...)
			enrollment.CodesVersion++
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeMFAStore) ReplaceBackupCodes(_ context.Context, accountID string, priorVersion uint64, codes []BackupCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return ErrNotEnrolled
	}
	if enrollment.CodesVersion != priorVersion {
		return ErrCodesConflict
	}

	enrollment.BackupCodes = append([]BackupCodeRecord(nil), codes...)
	enrollment.CodesVersion++
	return nil
}

func copyEnrollment(e *MFAEnrollment) *MFAEnrollment {
	cp := *e
	cp.BackupCodes = append([]BackupCodeRecord(nil), e.BackupCodes...)
	if e.LockedUntil != nil {
		t := *e.LockedUntil
		cp.LockedUntil = &t
	}
	if e.LastUsedAt != nil {
		t := *e.LastUsedAt
		cp.LastUsedAt = &t
	}
	return &cp
}
