package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"licenseapi/internal/license"
	"licenseapi/pkg/contracts/domain"
)

// LicenseRow is the GORM model for the licenses table.
type LicenseRow struct {
	LicenseKey     string     `gorm:"primaryKey;column:license_key;size:36"`
	Email          string     `gorm:"index;not null;column:email;size:255"`
	CustomerName   string     `gorm:"column:customer_name;size:255"`
	ProductName    string     `gorm:"column:product_name;size:255"`
	Status         string     `gorm:"index;not null;column:status;size:16"`
	DeviceID       string     `gorm:"column:device_id;size:255"`
	DeviceInfo     []byte     `gorm:"column:device_info;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	ExpirationDate time.Time  `gorm:"column:expiration_date"`
	ActivatedAt    *time.Time `gorm:"column:activated_at"`
	LastVerifiedAt *time.Time `gorm:"column:last_verified_at"`
	RevokedAt      *time.Time `gorm:"column:revoked_at"`
}

// TableName implements the GORM table naming convention.
func (LicenseRow) TableName() string {
	return "licenses"
}

// ToDomain converts the row to the domain entity.
func (r *LicenseRow) ToDomain() *domain.License {
	lic := &domain.License{
		LicenseKey:     r.LicenseKey,
		Email:          r.Email,
		CustomerName:   r.CustomerName,
		ProductName:    r.ProductName,
		Status:         domain.LicenseStatus(r.Status),
		DeviceID:       r.DeviceID,
		CreatedAt:      r.CreatedAt,
		ExpirationDate: r.ExpirationDate,
		ActivatedAt:    r.ActivatedAt,
		LastVerifiedAt: r.LastVerifiedAt,
		RevokedAt:      r.RevokedAt,
	}
	if len(r.DeviceInfo) > 0 {
		// Malformed rows keep their raw bytes in the column; the entity
		// just omits the metadata.
		_ = json.Unmarshal(r.DeviceInfo, &lic.DeviceInfo)
	}
	return lic
}

func rowFromDomain(lic *domain.License) (*LicenseRow, error) {
	row := &LicenseRow{
		LicenseKey:     lic.LicenseKey,
		Email:          lic.Email,
		CustomerName:   lic.CustomerName,
		ProductName:    lic.ProductName,
		Status:         string(lic.Status),
		DeviceID:       lic.DeviceID,
		CreatedAt:      lic.CreatedAt,
		ExpirationDate: lic.ExpirationDate,
		ActivatedAt:    lic.ActivatedAt,
		LastVerifiedAt: lic.LastVerifiedAt,
		RevokedAt:      lic.RevokedAt,
	}
	if lic.DeviceInfo != nil {
		data, err := json.Marshal(lic.DeviceInfo)
		if err != nil {
			return nil, err
		}
		row.DeviceInfo = data
	}
	return row, nil
}

// PostgresStore implements license.Store on Postgres through GORM. Every
// conditional update is a single UPDATE ... WHERE statement, so the
// expectation check and the mutation are atomic at the database.
type PostgresStore struct {
	db *gorm.DB
}

// OpenPostgres connects to Postgres and migrates the licenses and backups
// schemas.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&LicenseRow{}, &BackupRow{}); err != nil {
		return nil, err
	}
	return db, nil
}

// NewPostgresStore creates a license store on an open GORM handle.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindByKey implements license.Store.
func (s *PostgresStore) FindByKey(ctx context.Context, key string) (*domain.License, error) {
	var row LicenseRow
	err := s.db.WithContext(ctx).Where("license_key = ?", key).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, license.ErrNotFound
		}
		return nil, wrapDBErr(err)
	}
	return row.ToDomain(), nil
}

// FindActiveByEmail implements license.Store.
func (s *PostgresStore) FindActiveByEmail(ctx context.Context, email string) (*domain.License, error) {
	var row LicenseRow
	err := s.db.WithContext(ctx).
		Where("email = ? AND status <> ?", email, string(domain.LicenseStatusRevoked)).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, license.ErrNotFound
		}
		return nil, wrapDBErr(err)
	}
	return row.ToDomain(), nil
}

// Insert implements license.Store.
func (s *PostgresStore) Insert(ctx context.Context, lic *domain.License) error {
	row, err := rowFromDomain(lic)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return license.ErrDuplicateKey
		}
		return wrapDBErr(err)
	}
	return nil
}

// UpdateWhere implements license.Store. The expectation becomes extra WHERE
// guards on the UPDATE; zero rows affected is disambiguated with a follow-up
// existence check.
func (s *PostgresStore) UpdateWhere(ctx context.Context, key string, expect license.Expectation, set license.Mutation) error {
	tx := s.db.WithContext(ctx).Model(&LicenseRow{}).Where("license_key = ?", key)
	if expect.DeviceID != nil {
		tx = tx.Where("device_id = ?", *expect.DeviceID)
	}
	if expect.Status != nil {
		tx = tx.Where("status = ?", string(*expect.Status))
	}
	if expect.NotStatus != nil {
		tx = tx.Where("status <> ?", string(*expect.NotStatus))
	}

	updates, err := mutationColumns(set)
	if err != nil {
		return err
	}
	result := tx.Updates(updates)
	if result.Error != nil {
		return wrapDBErr(result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	// No row matched: either the key is unknown or the expectation failed.
	var count int64
	if err := s.db.WithContext(ctx).Model(&LicenseRow{}).
		Where("license_key = ?", key).Count(&count).Error; err != nil {
		return wrapDBErr(err)
	}
	if count == 0 {
		return license.ErrNotFound
	}
	return license.ErrPreconditionFailed
}

// RevokeAllByEmail implements license.Store.
func (s *PostgresStore) RevokeAllByEmail(ctx context.Context, email string, at time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Model(&LicenseRow{}).
		Where("email = ? AND status <> ?", email, string(domain.LicenseStatusRevoked)).
		Updates(map[string]any{
			"status":     string(domain.LicenseStatusRevoked),
			"revoked_at": at,
		})
	if result.Error != nil {
		return 0, wrapDBErr(result.Error)
	}
	return result.RowsAffected, nil
}

func mutationColumns(set license.Mutation) (map[string]any, error) {
	updates := make(map[string]any)
	if set.Status != nil {
		updates["status"] = string(*set.Status)
	}
	if set.DeviceID != nil {
		updates["device_id"] = *set.DeviceID
	}
	if set.DeviceInfo != nil {
		data, err := json.Marshal(set.DeviceInfo)
		if err != nil {
			return nil, err
		}
		updates["device_info"] = data
	}
	if set.ActivatedAt != nil {
		updates["activated_at"] = *set.ActivatedAt
	}
	if set.LastVerifiedAt != nil {
		updates["last_verified_at"] = *set.LastVerifiedAt
	}
	if set.RevokedAt != nil {
		updates["revoked_at"] = *set.RevokedAt
	}
	return updates, nil
}

func wrapDBErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(license.ErrStoreUnavailable, err)
}
