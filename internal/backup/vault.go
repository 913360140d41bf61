// Package backup implements the backup vault: a last-write-wins store of
// the most recent financial-data snapshot per user, keyed by normalized
// email. The vault is deliberately unrelated to license state so that a
// revocation never destroys a user's financial data.
package backup

import (
	"context"
	"errors"
	"sync"

	"licenseapi/pkg/contracts/domain"
)

// ErrNotFound indicates no snapshot exists for the email.
var ErrNotFound = errors.New("no backup found for email")

// ErrVaultUnavailable indicates a transient persistence failure.
var ErrVaultUnavailable = errors.New("backup vault unavailable")

// Vault is the persistence contract for backup snapshots. Save overwrites
// any prior snapshot for the email; no history is retained.
type Vault interface {
	Save(ctx context.Context, record *domain.BackupRecord) error
	Load(ctx context.Context, email string) (*domain.BackupRecord, error)
}

// MemoryVault is a mutex-guarded map implementation of Vault for tests and
// development mode.
type MemoryVault struct {
	mu      sync.RWMutex
	records map[string]*domain.BackupRecord
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{records: make(map[string]*domain.BackupRecord)}
}

// Save implements Vault. The record's email must already be normalized by
// the caller.
func (v *MemoryVault) Save(ctx context.Context, record *domain.BackupRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	clone := *record
	v.records[record.Email] = &clone
	return nil
}

// Load implements Vault.
func (v *MemoryVault) Load(ctx context.Context, email string) (*domain.BackupRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	record, ok := v.records[domain.NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}
