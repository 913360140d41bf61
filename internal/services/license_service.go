// Package services contains the business-logic layer between the HTTP
// handlers and the lifecycle engine, backup vault, and notification
// gateway.
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"licenseapi/internal/infrastructure"
	"licenseapi/internal/license"
	"licenseapi/internal/notify"
	"licenseapi/pkg/contracts/domain"
)

// IssueResult reports an issued license together with the notification
// outcome. Email delivery failure never rolls the issuance back; it is
// surfaced here for the caller to see.
type IssueResult struct {
	License    *domain.License `json:"license"`
	EmailSent  bool            `json:"email_sent"`
	EmailError string          `json:"email_error,omitempty"`
}

// LicenseService exposes the license operations to the transport layer.
type LicenseService interface {
	Issue(ctx context.Context, email, customerName string) (*IssueResult, error)
	Activate(ctx context.Context, key, deviceID string, deviceInfo map[string]string) (*domain.ActivationResult, error)
	Verify(ctx context.Context, key, deviceID string) (*domain.VerificationResult, error)
	Revoke(ctx context.Context, key string) (*domain.RevocationResult, error)
	RevokeByEmail(ctx context.Context, email string) (*domain.RevocationResult, error)
	RebindDevice(ctx context.Context, key, newDeviceID string) (*domain.License, error)
	Get(ctx context.Context, key string) (*domain.License, error)
}

type licenseService struct {
	engine   *license.Engine
	notifier notify.Notifier
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

// NewLicenseService creates the license business-logic service.
func NewLicenseService(engine *license.Engine, notifier notify.Notifier, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) LicenseService {
	return &licenseService{
		engine:   engine,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.With(slog.String("service", "license")),
	}
}

// Issue creates a license through the administrative flow (active status)
// and mails the key to the customer.
func (s *licenseService) Issue(ctx context.Context, email, customerName string) (*IssueResult, error) {
	lic, err := s.engine.Issue(ctx, email, customerName, license.FlowAdmin)
	if err != nil {
		s.recordStoreError(ctx, "issue", err)
		return nil, err
	}
	s.metrics.RecordIssued(ctx, string(license.FlowAdmin))

	result := &IssueResult{License: lic}
	s.deliverKey(ctx, lic, result)
	return result, nil
}

func (s *licenseService) deliverKey(ctx context.Context, lic *domain.License, result *IssueResult) {
	// Delivery gets its own deadline so a slow mail provider cannot hold
	// the request, and its failure never reverses the issuance.
	sendCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if err := s.notifier.SendLicenseKey(sendCtx, lic.Email, lic.CustomerName, lic.LicenseKey); err != nil {
		s.metrics.RecordNotifyFailure(ctx)
		s.logger.ErrorContext(ctx, "license email delivery failed",
			slog.String("license_key", license.MaskKey(lic.LicenseKey)),
			slog.String("email", lic.Email),
			slog.String("error", err.Error()))
		result.EmailError = err.Error()
		return
	}
	result.EmailSent = true
}

// Activate binds or re-binds the presented device via the engine.
func (s *licenseService) Activate(ctx context.Context, key, deviceID string, deviceInfo map[string]string) (*domain.ActivationResult, error) {
	result, err := s.engine.Activate(ctx, key, deviceID, deviceInfo)
	if err != nil {
		s.metrics.RecordActivation(ctx, rejectionLabel(err))
		s.recordStoreError(ctx, "activate", err)
		return nil, err
	}
	s.metrics.RecordActivation(ctx, string(result.Outcome))
	return result, nil
}

// Verify checks the license for the presented device.
func (s *licenseService) Verify(ctx context.Context, key, deviceID string) (*domain.VerificationResult, error) {
	result, err := s.engine.Verify(ctx, key, deviceID)
	if err != nil {
		s.metrics.RecordVerification(ctx, rejectionLabel(err))
		s.recordStoreError(ctx, "verify", err)
		return nil, err
	}
	s.metrics.RecordVerification(ctx, "valid")
	return result, nil
}

// Revoke terminates a single license.
func (s *licenseService) Revoke(ctx context.Context, key string) (*domain.RevocationResult, error) {
	result, err := s.engine.Revoke(ctx, key)
	if err != nil {
		s.recordStoreError(ctx, "revoke", err)
		return nil, err
	}
	s.metrics.RecordRevocations(ctx, result.Affected)
	return result, nil
}

// RevokeByEmail terminates every non-revoked license for the email.
func (s *licenseService) RevokeByEmail(ctx context.Context, email string) (*domain.RevocationResult, error) {
	result, err := s.engine.RevokeByEmail(ctx, email)
	if err != nil {
		s.recordStoreError(ctx, "revoke_by_email", err)
		return nil, err
	}
	s.metrics.RecordRevocations(ctx, result.Affected)
	return result, nil
}

// RebindDevice applies the administrative device override and returns the
// updated record.
func (s *licenseService) RebindDevice(ctx context.Context, key, newDeviceID string) (*domain.License, error) {
	if err := s.engine.RebindDevice(ctx, key, newDeviceID); err != nil {
		s.recordStoreError(ctx, "rebind", err)
		return nil, err
	}
	return s.engine.Get(ctx, key)
}

// Get returns a license for administrative inspection.
func (s *licenseService) Get(ctx context.Context, key string) (*domain.License, error) {
	return s.engine.Get(ctx, key)
}

func (s *licenseService) recordStoreError(ctx context.Context, operation string, err error) {
	if errors.Is(err, license.ErrStoreUnavailable) {
		s.metrics.RecordStoreError(ctx, operation)
	}
}

// rejectionLabel names an engine error for the outcome metric dimension.
func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, license.ErrRevoked):
		return "revoked"
	case errors.Is(err, license.ErrDeviceConflict):
		return "device_conflict"
	case errors.Is(err, license.ErrInactive):
		return "inactive"
	case errors.Is(err, license.ErrNotFound):
		return "not_found"
	case errors.Is(err, license.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, license.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}
