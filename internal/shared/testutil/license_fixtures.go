package testutil

import (
	"time"

	"licenseapi/pkg/contracts/domain"
)

// Well-formed keys for fixtures. Real issuance generates fresh UUIDs; these
// are fixed so tests can assert on them.
const (
	PendingKey = "11111111-2222-3333-4444-555555555555"
	ActiveKey  = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
	RevokedKey = "99999999-8888-7777-6666-555555555555"
)

// PendingLicense returns an issued, never-activated license.
func PendingLicense() *domain.License {
	now := time.Now().UTC()
	return &domain.License{
		LicenseKey:     PendingKey,
		Email:          "pending@example.com",
		CustomerName:   "Pending Customer",
		ProductName:    "ControlaAI",
		Status:         domain.LicenseStatusPending,
		CreatedAt:      now.Add(-24 * time.Hour),
		ExpirationDate: now.Add(364 * 24 * time.Hour),
	}
}

// ActiveLicense returns a license bound to the given device.
func ActiveLicense(deviceID string) *domain.License {
	now := time.Now().UTC()
	activated := now.Add(-12 * time.Hour)
	return &domain.License{
		LicenseKey:     ActiveKey,
		Email:          "active@example.com",
		CustomerName:   "Active Customer",
		ProductName:    "ControlaAI",
		Status:         domain.LicenseStatusActive,
		DeviceID:       deviceID,
		CreatedAt:      now.Add(-48 * time.Hour),
		ExpirationDate: now.Add(363 * 24 * time.Hour),
		ActivatedAt:    &activated,
	}
}

// RevokedLicense returns a terminally revoked license.
func RevokedLicense() *domain.License {
	now := time.Now().UTC()
	activated := now.Add(-72 * time.Hour)
	revoked := now.Add(-time.Hour)
	return &domain.License{
		LicenseKey:     RevokedKey,
		Email:          "revoked@example.com",
		CustomerName:   "Revoked Customer",
		ProductName:    "ControlaAI",
		Status:         domain.LicenseStatusRevoked,
		DeviceID:       "device-revoked",
		CreatedAt:      now.Add(-96 * time.Hour),
		ExpirationDate: now.Add(361 * 24 * time.Hour),
		ActivatedAt:    &activated,
		RevokedAt:      &revoked,
	}
}
