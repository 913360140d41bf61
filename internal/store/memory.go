// Package store provides implementations of the license.Store contract:
// a Postgres-backed store for production, an in-memory store for tests and
// development mode, and a Redis read-through cache decorator.
package store

import (
	"context"
	"sync"
	"time"

	"licenseapi/internal/license"
	"licenseapi/pkg/contracts/domain"
)

// MemoryStore is a mutex-guarded map implementation of license.Store. It is
// the development-mode store and the fixture for engine tests; conditional
// updates are atomic under the store mutex, matching the linearizability
// the contract demands.
type MemoryStore struct {
	mu       sync.RWMutex
	licenses map[string]*domain.License
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{licenses: make(map[string]*domain.License)}
}

// FindByKey implements license.Store.
func (s *MemoryStore) FindByKey(ctx context.Context, key string) (*domain.License, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	lic, ok := s.licenses[key]
	if !ok {
		return nil, license.ErrNotFound
	}
	return cloneLicense(lic), nil
}

// FindActiveByEmail implements license.Store.
func (s *MemoryStore) FindActiveByEmail(ctx context.Context, email string) (*domain.License, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, lic := range s.licenses {
		if lic.Email == email && lic.Status != domain.LicenseStatusRevoked {
			return cloneLicense(lic), nil
		}
	}
	return nil, license.ErrNotFound
}

// Insert implements license.Store.
func (s *MemoryStore) Insert(ctx context.Context, lic *domain.License) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.licenses[lic.LicenseKey]; exists {
		return license.ErrDuplicateKey
	}
	s.licenses[lic.LicenseKey] = cloneLicense(lic)
	return nil
}

// UpdateWhere implements license.Store.
func (s *MemoryStore) UpdateWhere(ctx context.Context, key string, expect license.Expectation, set license.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lic, ok := s.licenses[key]
	if !ok {
		return license.ErrNotFound
	}
	if !matches(lic, expect) {
		return license.ErrPreconditionFailed
	}
	applyMutation(lic, set)
	return nil
}

// RevokeAllByEmail implements license.Store.
func (s *MemoryStore) RevokeAllByEmail(ctx context.Context, email string, at time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var affected int64
	for _, lic := range s.licenses {
		if lic.Email == email && lic.Status != domain.LicenseStatusRevoked {
			lic.Status = domain.LicenseStatusRevoked
			revokedAt := at
			lic.RevokedAt = &revokedAt
			affected++
		}
	}
	return affected, nil
}

func matches(lic *domain.License, expect license.Expectation) bool {
	if expect.DeviceID != nil && lic.DeviceID != *expect.DeviceID {
		return false
	}
	if expect.Status != nil && lic.Status != *expect.Status {
		return false
	}
	if expect.NotStatus != nil && lic.Status == *expect.NotStatus {
		return false
	}
	return true
}

func applyMutation(lic *domain.License, set license.Mutation) {
	if set.Status != nil {
		lic.Status = *set.Status
	}
	if set.DeviceID != nil {
		lic.DeviceID = *set.DeviceID
	}
	if set.DeviceInfo != nil {
		lic.DeviceInfo = set.DeviceInfo
	}
	if set.ActivatedAt != nil {
		t := *set.ActivatedAt
		lic.ActivatedAt = &t
	}
	if set.LastVerifiedAt != nil {
		t := *set.LastVerifiedAt
		lic.LastVerifiedAt = &t
	}
	if set.RevokedAt != nil {
		t := *set.RevokedAt
		lic.RevokedAt = &t
	}
}

func cloneLicense(lic *domain.License) *domain.License {
	out := *lic
	if lic.DeviceInfo != nil {
		out.DeviceInfo = make(map[string]string, len(lic.DeviceInfo))
		for k, v := range lic.DeviceInfo {
			out.DeviceInfo[k] = v
		}
	}
	out.ActivatedAt = cloneTime(lic.ActivatedAt)
	out.LastVerifiedAt = cloneTime(lic.LastVerifiedAt)
	out.RevokedAt = cloneTime(lic.RevokedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
