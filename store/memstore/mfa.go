package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/sscn-platform/authcore"
)

// MFA is a mutex-guarded in-memory [authcore.MFAStore].
type MFA struct {
	mu          sync.RWMutex
	enrollments map[string]*authcore.MFAEnrollment
}

// NewMFA returns an empty enrollment store.
func NewMFA() *MFA {
	return &MFA{enrollments: make(map[string]*authcore.MFAEnrollment)}
}

// Enrollment implements [authcore.MFAStore].
func (s *MFA) Enrollment(_ context.Context, accountID string) (*authcore.MFAEnrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return nil, authcore.ErrNotEnrolled
	}
	return cloneEnrollment(enrollment), nil
}

// PutEnrollment implements [authcore.MFAStore].
func (s *MFA) PutEnrollment(_ context.Context, enrollment *authcore.MFAEnrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enrollments[enrollment.AccountID] = cloneEnrollment(enrollment)
	return nil
}

// DeleteEnrollment implements [authcore.MFAStore].
func (s *MFA) DeleteEnrollment(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.enrollments, accountID)
	return nil
}

// RecordFailure implements [authcore.MFAStore].
func (s *MFA) RecordFailure(_ context.Context, accountID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return 0, authcore.ErrNotEnrolled
	}
	enrollment.FailedAttempts++
	return enrollment.FailedAttempts, nil
}

// Lock implements [authcore.MFAStore].
func (s *MFA) Lock(_ context.Context, accountID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return authcore.ErrNotEnrolled
	}
	u := until
	enrollment.LockedUntil = &u
	return nil
}

// ClearLock implements [authcore.MFAStore].
func (s *MFA) ClearLock(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return authcore.ErrNotEnrolled
	}
	enrollment.FailedAttempts = 0
	enrollment.LockedUntil = nil
	return nil
}

// RecordSuccess implements [authcore.MFAStore].
func (s *MFA) RecordSuccess(_ context.Context, accountID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return authcore.ErrNotEnrolled
	}
	enrollment.FailedAttempts = 0
	enrollment.LockedUntil = nil
	t := at
	enrollment.LastUsedAt = &t
	return nil
}

// ConsumeBackupCode implements [authcore.MFAStore]. Consuming advances the
// set version so a concurrent regeneration started before the consume loses
// its version check.
func (s *MFA) ConsumeBackupCode(_ context.Context, accountID string, hash [32]byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return false, authcore.ErrNotEnrolled
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

// ReplaceBackupCodes implements [authcore.MFAStore].
func (s *MFA) ReplaceBackupCodes(_ context.Context, accountID string, priorVersion uint64, codes []authcore.BackupCodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	enrollment, ok := s.enrollments[accountID]
	if !ok {
		return authcore.ErrNotEnrolled
	}
	if enrollment.CodesVersion != priorVersion {
		return authcore.ErrCodesConflict
	}

	enrollment.BackupCodes = append([]authcore.BackupCodeRecord(nil), codes...)
	enrollment.CodesVersion++
	return nil
}

func cloneEnrollment(e *authcore.MFAEnrollment) *authcore.MFAEnrollment {
	cp := *e
	cp.BackupCodes = append([]authcore.BackupCodeRecord(nil), e.BackupCodes...)
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
