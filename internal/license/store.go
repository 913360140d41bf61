package license

import (
	"context"
	"errors"
	"time"

	"licenseapi/pkg/contracts/domain"
)

// ErrPreconditionFailed is returned by Store.UpdateWhere when the record
// exists but no longer matches the expectation. It never crosses the engine
// boundary; the engine re-reads and classifies the conflict.
var ErrPreconditionFailed = errors.New("license record did not match expectation")

// Expectation constrains which record state a conditional update applies to.
// Nil fields mean "any". A pointer to the empty string for DeviceID means
// "unbound".
type Expectation struct {
	DeviceID  *string
	Status    *domain.LicenseStatus
	NotStatus *domain.LicenseStatus
}

// Mutation lists the fields a conditional update sets. Nil fields are left
// untouched.
type Mutation struct {
	Status         *domain.LicenseStatus
	DeviceID       *string
	DeviceInfo     map[string]string
	ActivatedAt    *time.Time
	LastVerifiedAt *time.Time
	RevokedAt      *time.Time
}

// Store is the persistence contract the lifecycle engine drives. The store
// is the sole owner of concurrency control: UpdateWhere must apply the
// expectation check and the mutation atomically, so that concurrent
// transitions on the same key are linearizable.
//
// Implementations translate their infrastructure failures to
// ErrStoreUnavailable and honor context cancellation on every call.
type Store interface {
	// FindByKey returns the license for a canonical key, or ErrNotFound.
	FindByKey(ctx context.Context, key string) (*domain.License, error)

	// FindActiveByEmail returns a non-revoked license for the email, or
	// ErrNotFound when none exists. Used by the duplicate-issue policy.
	FindActiveByEmail(ctx context.Context, email string) (*domain.License, error)

	// Insert stores a new license. Returns ErrDuplicateKey when the key is
	// already present.
	Insert(ctx context.Context, lic *domain.License) error

	// UpdateWhere atomically applies set to the record for key, but only
	// if the record matches expect. Returns ErrNotFound when the key does
	// not exist and ErrPreconditionFailed when it exists but the
	// expectation does not hold. No partial mutation on any error.
	UpdateWhere(ctx context.Context, key string, expect Expectation, set Mutation) error

	// RevokeAllByEmail marks every non-revoked license for the email as
	// revoked with the given timestamp and reports how many records were
	// affected. Zero matches is not an error.
	RevokeAllByEmail(ctx context.Context, email string, at time.Time) (int64, error)
}

// StatusPtr is a convenience for building expectations and mutations.
func StatusPtr(s domain.LicenseStatus) *domain.LicenseStatus { return &s }

// StringPtr is a convenience for building expectations and mutations.
func StringPtr(s string) *string { return &s }

// TimePtr is a convenience for building mutations.
func TimePtr(t time.Time) *time.Time { return &t }
