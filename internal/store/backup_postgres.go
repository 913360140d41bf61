package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"licenseapi/internal/backup"
	"licenseapi/pkg/contracts/domain"
)

// BackupRow is the GORM model for the backups table.
type BackupRow struct {
	Email        string    `gorm:"primaryKey;column:email;size:255"`
	Transactions []byte    `gorm:"column:transactions;type:jsonb"`
	FixedCosts   []byte    `gorm:"column:fixed_costs;type:jsonb"`
	Payments     []byte    `gorm:"column:payments;type:jsonb"`
	Version      string    `gorm:"column:version;size:16"`
	LastBackup   time.Time `gorm:"column:last_backup"`
}

// TableName implements the GORM table naming convention.
func (BackupRow) TableName() string {
	return "backups"
}

// PostgresVault implements backup.Vault on Postgres. Save is an upsert on
// the email primary key, making the last writer win.
type PostgresVault struct {
	db *gorm.DB
}

// NewPostgresVault creates a backup vault on an open GORM handle.
func NewPostgresVault(db *gorm.DB) *PostgresVault {
	return &PostgresVault{db: db}
}

// Save implements backup.Vault.
func (v *PostgresVault) Save(ctx context.Context, record *domain.BackupRecord) error {
	row := BackupRow{
		Email:        record.Email,
		Transactions: record.Transactions,
		FixedCosts:   record.FixedCosts,
		Payments:     record.Payments,
		Version:      record.Version,
		LastBackup:   record.LastBackup,
	}
	err := v.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return errors.Join(backup.ErrVaultUnavailable, err)
	}
	return nil
}

// Load implements backup.Vault.
func (v *PostgresVault) Load(ctx context.Context, email string) (*domain.BackupRecord, error) {
	var row BackupRow
	err := v.db.WithContext(ctx).
		Where("email = ?", domain.NormalizeEmail(email)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, backup.ErrNotFound
		}
		return nil, errors.Join(backup.ErrVaultUnavailable, err)
	}
	return &domain.BackupRecord{
		Email:        row.Email,
		Transactions: row.Transactions,
		FixedCosts:   row.FixedCosts,
		Payments:     row.Payments,
		Version:      row.Version,
		LastBackup:   row.LastBackup,
	}, nil
}
