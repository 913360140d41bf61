package errors

import (
	"errors"
	"net/http"

	"licenseapi/internal/backup"
	"licenseapi/internal/license"
)

// FromLicenseError maps a lifecycle engine error to an RFC 7807 response.
// The mapping follows the taxonomy: InvalidInput 400, NotFound 404,
// DeviceConflict/Revoked/Inactive 403, DuplicateEmail 409,
// StoreUnavailable 503.
func FromLicenseError(err error, instance, traceID string) *ProblemDetails {
	var pd *ProblemDetails

	switch {
	case errors.Is(err, license.ErrInvalidInput):
		pd = NewProblemDetails(http.StatusBadRequest,
			"/errors/invalid-input", "Invalid Input", err.Error(), instance)

	case errors.Is(err, license.ErrNotFound):
		pd = NewProblemDetails(http.StatusNotFound,
			"/errors/license-not-found", "License Not Found",
			"No license exists for the given key", instance)

	case errors.Is(err, license.ErrRevoked):
		pd = NewProblemDetails(http.StatusForbidden,
			"/errors/license-revoked", "License Revoked",
			"This license has been revoked and can no longer be used", instance)

	case errors.Is(err, license.ErrDeviceConflict):
		pd = NewProblemDetails(http.StatusForbidden,
			"/errors/device-conflict", "Device Conflict",
			"This license is already activated on another device", instance)

	case errors.Is(err, license.ErrInactive):
		pd = NewProblemDetails(http.StatusForbidden,
			"/errors/license-inactive", "License Inactive",
			"This license is not active", instance)

	case errors.Is(err, license.ErrDuplicateEmail):
		pd = NewProblemDetails(http.StatusConflict,
			"/errors/duplicate-email", "Duplicate Email",
			"A license already exists for this email", instance)
		var dup *license.DuplicateEmailError
		if errors.As(err, &dup) {
			pd.WithExtension("existing_key", dup.ExistingKey)
		}

	case errors.Is(err, license.ErrStoreUnavailable):
		pd = NewProblemDetails(http.StatusServiceUnavailable,
			"/errors/store-unavailable", "Store Unavailable",
			"The license store is temporarily unavailable, retry shortly", instance)

	default:
		pd = NewProblemDetails(http.StatusInternalServerError,
			"/errors/internal", "Internal Server Error",
			"An unexpected error occurred", instance)
	}

	if traceID != "" {
		pd.WithExtension("trace_id", traceID)
	}
	return pd
}

// FromBackupError maps a backup vault error to an RFC 7807 response.
func FromBackupError(err error, instance, traceID string) *ProblemDetails {
	var pd *ProblemDetails

	switch {
	case errors.Is(err, backup.ErrNotFound):
		pd = NewProblemDetails(http.StatusNotFound,
			"/errors/backup-not-found", "Backup Not Found",
			"No backup exists for this email", instance)
		pd.WithExtension("has_backup", false)

	case errors.Is(err, backup.ErrVaultUnavailable):
		pd = NewProblemDetails(http.StatusServiceUnavailable,
			"/errors/vault-unavailable", "Vault Unavailable",
			"The backup vault is temporarily unavailable, retry shortly", instance)

	default:
		pd = NewProblemDetails(http.StatusInternalServerError,
			"/errors/internal", "Internal Server Error",
			"An unexpected error occurred", instance)
	}

	if traceID != "" {
		pd.WithExtension("trace_id", traceID)
	}
	return pd
}
