package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"licenseapi/internal/infrastructure"
	"licenseapi/internal/license"
	"licenseapi/internal/notify"
	api "licenseapi/pkg/contracts/api/v1"
)

// WebhookResult reports what the purchase webhook did with an event.
type WebhookResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Event      string `json:"event,omitempty"`
	LicenseKey string `json:"license_key,omitempty"`
	Email      string `json:"email,omitempty"`
	EmailSent  bool   `json:"email_sent,omitempty"`
	Affected   int64  `json:"affected,omitempty"`
}

// WebhookService processes payment-platform events: purchases issue a
// pending license and mail the key, chargebacks and cancellations revoke
// every license of the buyer. Unknown events are acknowledged untouched so
// the platform does not retry them forever.
type WebhookService interface {
	ProcessEvent(ctx context.Context, event api.PurchaseWebhookRequest) (*WebhookResult, error)
}

type webhookService struct {
	engine   *license.Engine
	notifier notify.Notifier
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger
}

// NewWebhookService creates the webhook processor.
func NewWebhookService(engine *license.Engine, notifier notify.Notifier, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) WebhookService {
	return &webhookService{
		engine:   engine,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.With(slog.String("service", "webhook")),
	}
}

// ProcessEvent implements WebhookService.
func (s *webhookService) ProcessEvent(ctx context.Context, event api.PurchaseWebhookRequest) (*WebhookResult, error) {
	switch event.Event {
	case api.EventPurchaseApproved, api.EventPurchaseComplete, api.EventPurchase:
		return s.handlePurchase(ctx, event)
	case api.EventChargeback, api.EventCancellation:
		return s.handleChargeback(ctx, event)
	default:
		s.logger.InfoContext(ctx, "webhook event ignored",
			slog.String("event", event.Event))
		return &WebhookResult{
			Success: true,
			Message: "Event received but not processed",
			Event:   event.Event,
		}, nil
	}
}

func (s *webhookService) handlePurchase(ctx context.Context, event api.PurchaseWebhookRequest) (*WebhookResult, error) {
	buyer := event.Data.Buyer
	customerName := buyer.Name
	if customerName == "" {
		customerName = "Customer"
	}

	lic, err := s.engine.Issue(ctx, buyer.Email, customerName, license.FlowPurchase)
	if err != nil {
		// A repeat purchase under the one-license-per-email policy
		// surfaces the existing key instead of failing the webhook.
		var dup *license.DuplicateEmailError
		if errors.As(err, &dup) {
			s.logger.InfoContext(ctx, "purchase for existing license, resending key",
				slog.String("email", buyer.Email),
				slog.String("license_key", license.MaskKey(dup.ExistingKey)))
			result := &WebhookResult{
				Success:    true,
				Message:    "License already exists, key resent",
				Event:      event.Event,
				LicenseKey: dup.ExistingKey,
				Email:      buyer.Email,
			}
			result.EmailSent = s.sendKey(ctx, buyer.Email, customerName, dup.ExistingKey)
			return result, nil
		}
		return nil, err
	}
	s.metrics.RecordIssued(ctx, string(license.FlowPurchase))

	result := &WebhookResult{
		Success:    true,
		Message:    "License issued",
		Event:      event.Event,
		LicenseKey: lic.LicenseKey,
		Email:      lic.Email,
	}
	result.EmailSent = s.sendKey(ctx, lic.Email, lic.CustomerName, lic.LicenseKey)
	if !result.EmailSent {
		result.Message = "License issued but email delivery failed"
	}
	return result, nil
}

func (s *webhookService) handleChargeback(ctx context.Context, event api.PurchaseWebhookRequest) (*WebhookResult, error) {
	revocation, err := s.engine.RevokeByEmail(ctx, event.Data.Buyer.Email)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordRevocations(ctx, revocation.Affected)

	s.logger.InfoContext(ctx, "licenses revoked for chargeback",
		slog.String("event", event.Event),
		slog.String("email", event.Data.Buyer.Email),
		slog.Int64("affected", revocation.Affected))
	return &WebhookResult{
		Success:  true,
		Message:  revocation.Message,
		Event:    event.Event,
		Email:    event.Data.Buyer.Email,
		Affected: revocation.Affected,
	}, nil
}

// sendKey mails a license key; failure is logged and counted but never
// fails the webhook, the license mutation already happened.
func (s *webhookService) sendKey(ctx context.Context, email, customerName, key string) bool {
	sendCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if err := s.notifier.SendLicenseKey(sendCtx, email, customerName, key); err != nil {
		s.metrics.RecordNotifyFailure(ctx)
		s.logger.ErrorContext(ctx, "license email delivery failed",
			slog.String("email", email),
			slog.String("license_key", license.MaskKey(key)),
			slog.String("error", err.Error()))
		return false
	}
	return true
}
