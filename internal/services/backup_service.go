package services

import (
	"context"
	"log/slog"
	"time"

	"licenseapi/internal/backup"
	"licenseapi/internal/infrastructure"
	api "licenseapi/pkg/contracts/api/v1"
	"licenseapi/pkg/contracts/domain"
)

// BackupSaveResult summarizes a stored snapshot.
type BackupSaveResult struct {
	Email     string             `json:"email"`
	Timestamp time.Time          `json:"timestamp"`
	Stats     domain.BackupStats `json:"stats"`
}

// BackupRestoreResult carries a retrieved snapshot and its stats.
type BackupRestoreResult struct {
	Record *domain.BackupRecord `json:"data"`
	Stats  domain.BackupStats   `json:"stats"`
}

// BackupService stores and retrieves per-user financial snapshots. It is
// intentionally independent of license state: revoking a license never
// touches the vault.
type BackupService interface {
	Save(ctx context.Context, email string, payload api.BackupSavePayload) (*BackupSaveResult, error)
	Restore(ctx context.Context, email string) (*BackupRestoreResult, error)
}

type backupService struct {
	vault   backup.Vault
	metrics *infrastructure.BusinessMetrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewBackupService creates the backup business-logic service.
func NewBackupService(vault backup.Vault, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) BackupService {
	return &backupService{
		vault:   vault,
		metrics: metrics,
		logger:  logger.With(slog.String("service", "backup")),
		now:     time.Now,
	}
}

// Save implements BackupService with last-write-wins semantics: the new
// snapshot replaces whatever was stored for the email.
func (s *backupService) Save(ctx context.Context, email string, payload api.BackupSavePayload) (*BackupSaveResult, error) {
	record := &domain.BackupRecord{
		Email:        domain.NormalizeEmail(email),
		Transactions: payload.Transactions,
		FixedCosts:   payload.FixedCosts,
		Payments:     payload.Payments,
		Version:      domain.BackupSchemaVersion,
		LastBackup:   s.now(),
	}

	if err := s.vault.Save(ctx, record); err != nil {
		return nil, err
	}
	s.metrics.RecordBackupSave(ctx)

	stats := record.CountStats()
	s.logger.InfoContext(ctx, "backup stored",
		slog.String("email", record.Email),
		slog.Int("transactions", stats.Transactions),
		slog.Int("fixed_costs", stats.FixedCosts))
	return &BackupSaveResult{
		Email:     record.Email,
		Timestamp: record.LastBackup,
		Stats:     stats,
	}, nil
}

// Restore implements BackupService.
func (s *backupService) Restore(ctx context.Context, email string) (*BackupRestoreResult, error) {
	record, err := s.vault.Load(ctx, email)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordBackupRestore(ctx)

	return &BackupRestoreResult{
		Record: record,
		Stats:  record.CountStats(),
	}, nil
}
