// Package domain contains the core domain models for the license service.
// These types serve as the Single Source of Truth (SSOT) for all layers of
// the application: the lifecycle engine, persistence, and transport.
package domain

import (
	"time"
)

// License represents a single software license bound to at most one device.
type License struct {
	LicenseKey   string        `json:"license_key" gorm:"column:license_key" validate:"required"`
	Email        string        `json:"email" gorm:"column:email" validate:"required,email"`
	CustomerName string        `json:"customer_name" gorm:"column:customer_name"`
	ProductName  string        `json:"product_name,omitempty" gorm:"column:product_name"`
	Status       LicenseStatus `json:"status" gorm:"column:status" validate:"required"`

	// DeviceID is the single device the license is bound to, empty until
	// first activation.
	DeviceID   string            `json:"device_id,omitempty" gorm:"column:device_id"`
	DeviceInfo map[string]string `json:"device_info,omitempty" gorm:"-"`

	CreatedAt      time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpirationDate time.Time  `json:"expiration_date" gorm:"column:expiration_date"`
	ActivatedAt    *time.Time `json:"activated_at,omitempty" gorm:"column:activated_at"`
	LastVerifiedAt *time.Time `json:"last_verified_at,omitempty" gorm:"column:last_verified_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty" gorm:"column:revoked_at"`
}

// LicenseStatus represents the lifecycle status of a license.
type LicenseStatus string

const (
	// LicenseStatusPending is a license issued but never activated.
	LicenseStatusPending LicenseStatus = "pending"
	// LicenseStatusActive is a license bound to a device and usable.
	LicenseStatusActive LicenseStatus = "active"
	// LicenseStatusRevoked is terminal; no transition leads out of it.
	LicenseStatusRevoked LicenseStatus = "revoked"
)

// LicenseValidityPeriod is the fixed lifetime of every issued license.
const LicenseValidityPeriod = 365 * 24 * time.Hour

// IsRevoked reports whether the license is in the terminal revoked state.
func (l *License) IsRevoked() bool {
	return l.Status == LicenseStatusRevoked
}

// IsBound reports whether the license has been consumed by a device.
func (l *License) IsBound() bool {
	return l.DeviceID != ""
}

// IsExpired reports whether the license expiration date has passed.
func (l *License) IsExpired(now time.Time) bool {
	return now.After(l.ExpirationDate)
}

// ActivationOutcome describes what an Activate call did to the license.
type ActivationOutcome string

const (
	// OutcomeActivated means the first device was bound.
	OutcomeActivated ActivationOutcome = "activated"
	// OutcomeReactivated means the already-bound device re-ran activation.
	OutcomeReactivated ActivationOutcome = "reactivated"
)

// ActivationResult is the outcome of a license activation attempt.
type ActivationResult struct {
	Valid       bool              `json:"valid"`
	Outcome     ActivationOutcome `json:"outcome,omitempty"`
	Message     string            `json:"message"`
	ActivatedAt *time.Time        `json:"activated_at,omitempty"`
}

// VerificationResult is the outcome of a license verification.
type VerificationResult struct {
	Valid      bool      `json:"valid"`
	Message    string    `json:"message"`
	VerifiedAt time.Time `json:"verified_at,omitempty"`
}

// RevocationResult reports a revocation, including the bulk-by-email variant.
type RevocationResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Affected int64  `json:"affected,omitempty"`
}
