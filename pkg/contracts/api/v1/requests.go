// Package api contains API contract definitions for the license service.
// Version v1 represents the current stable API version.
package api

import (
	"encoding/json"
)

// License API requests

// LicenseIssueRequest represents an administrative license issuance request.
type LicenseIssueRequest struct {
	Email        string `json:"email" validate:"required,email"`
	CustomerName string `json:"customer_name" validate:"required"`
}

// LicenseActivateRequest represents a license activation request from a client
// device. DeviceInfo is free-form metadata, stored as provided.
type LicenseActivateRequest struct {
	LicenseKey string            `json:"license_key" validate:"required"`
	DeviceID   string            `json:"device_id" validate:"required"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
}

// LicenseVerifyRequest represents a periodic license verification request.
type LicenseVerifyRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
	DeviceID   string `json:"device_id" validate:"required"`
}

// LicenseRevokeRequest represents an administrative revocation of one key.
type LicenseRevokeRequest struct {
	LicenseKey string `json:"license_key" validate:"required"`
}

// LicenseRevokeByEmailRequest revokes every non-revoked license for an email.
type LicenseRevokeByEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LicenseRebindRequest represents the administrative device override that
// moves a license to a new device, bypassing the exclusivity check.
type LicenseRebindRequest struct {
	LicenseKey  string `json:"license_key" validate:"required"`
	NewDeviceID string `json:"new_device_id" validate:"required"`
}

// Webhook requests

// PurchaseWebhookRequest is the payment-platform event envelope.
type PurchaseWebhookRequest struct {
	Event string              `json:"event" validate:"required"`
	Data  PurchaseWebhookData `json:"data"`
}

// PurchaseWebhookData carries buyer and product details of a purchase event.
type PurchaseWebhookData struct {
	Buyer   WebhookBuyer   `json:"buyer"`
	Product WebhookProduct `json:"product"`
}

// WebhookBuyer identifies the purchasing customer.
type WebhookBuyer struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// WebhookProduct identifies the purchased product.
type WebhookProduct struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Webhook event names recognized by the service.
const (
	EventPurchaseApproved = "PURCHASE_APPROVED"
	EventPurchaseComplete = "PURCHASE_COMPLETE"
	EventPurchase         = "PURCHASE"
	EventChargeback       = "CHARGEBACK"
	EventCancellation     = "CANCELLATION"
)

// Backup API requests

// BackupSaveRequest stores a financial snapshot for an email. The payload
// sections are opaque to the service and persisted as given.
type BackupSaveRequest struct {
	Email string            `json:"email" validate:"required,email"`
	Data  BackupSavePayload `json:"data"`
}

// BackupSavePayload carries the snapshot sections.
type BackupSavePayload struct {
	Transactions json.RawMessage `json:"transactions,omitempty"`
	FixedCosts   json.RawMessage `json:"fixed_costs,omitempty"`
	Payments     json.RawMessage `json:"payments,omitempty"`
}

// BackupRestoreRequest retrieves the latest snapshot for an email.
type BackupRestoreRequest struct {
	Email string `json:"email" validate:"required,email"`
}
