package license

import (
	"errors"
	"fmt"
)

// Sentinel errors form the engine's failure taxonomy. Handlers map these to
// HTTP statuses; nothing above the engine inspects error strings.
var (
	// ErrInvalidInput indicates a malformed key, email, or missing field.
	// Returned before any store access, no mutation occurs.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound indicates the license key does not exist.
	ErrNotFound = errors.New("license not found")

	// ErrDeviceConflict indicates the license is already bound to a
	// different device.
	ErrDeviceConflict = errors.New("license already activated on another device")

	// ErrRevoked indicates the license is in the terminal revoked state.
	ErrRevoked = errors.New("license revoked")

	// ErrInactive indicates the license status does not permit verification.
	ErrInactive = errors.New("license not active")

	// ErrDuplicateEmail indicates a non-revoked license already exists for
	// the email and the deployment policy disallows re-issue.
	ErrDuplicateEmail = errors.New("license already exists for email")

	// ErrDuplicateKey indicates a key collision on insert. With a
	// crypto-random 128-bit key this never happens in practice; the store
	// uniqueness constraint is a secondary guard.
	ErrDuplicateKey = errors.New("license key already exists")

	// ErrStoreUnavailable indicates a transient persistence failure. Safe
	// for the caller to retry, never retried internally.
	ErrStoreUnavailable = errors.New("license store unavailable")
)

// DuplicateEmailError carries the pre-existing key so issuance paths that
// surface it instead of failing can do so without a second lookup.
type DuplicateEmailError struct {
	Email       string
	ExistingKey string
}

func (e *DuplicateEmailError) Error() string {
	return fmt.Sprintf("license already exists for email %s", e.Email)
}

// Unwrap makes errors.Is(err, ErrDuplicateEmail) work.
func (e *DuplicateEmailError) Unwrap() error {
	return ErrDuplicateEmail
}
