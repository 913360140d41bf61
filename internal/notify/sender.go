// Package notify implements the notification gateway that delivers license
// keys to customers by email. Delivery failure is reported to the caller
// but must never reverse a completed license mutation; the service layer
// logs and carries on.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notifier delivers a license key to a customer.
type Notifier interface {
	SendLicenseKey(ctx context.Context, email, customerName, licenseKey string) error
}

// sgEmail, sgContent, and sgRequest model the SendGrid v3 mail send payload.
type sgEmail struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sgContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sgPersonalization struct {
	To []sgEmail `json:"to"`
}

type sgRequest struct {
	Personalizations []sgPersonalization `json:"personalizations"`
	From             sgEmail             `json:"from"`
	Subject          string              `json:"subject"`
	Content          []sgContent         `json:"content"`
}

// EmailSender sends license keys through a SendGrid-compatible HTTP API.
type EmailSender struct {
	apiURL      string
	apiKey      string
	senderEmail string
	senderName  string
	productName string
	client      *http.Client
}

// SendGridAPIURL is the production mail-send endpoint.
const SendGridAPIURL = "https://api.sendgrid.com/v3/mail/send"

// NewEmailSender creates a sender. An empty apiURL selects the production
// SendGrid endpoint; tests point it at a local server.
func NewEmailSender(apiURL, apiKey, senderEmail, senderName, productName string) *EmailSender {
	if apiURL == "" {
		apiURL = SendGridAPIURL
	}
	return &EmailSender{
		apiURL:      apiURL,
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		productName: productName,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

// SendLicenseKey implements Notifier.
func (s *EmailSender) SendLicenseKey(ctx context.Context, email, customerName, licenseKey string) error {
	payload := sgRequest{
		Personalizations: []sgPersonalization{
			{To: []sgEmail{{Email: email, Name: customerName}}},
		},
		From:    sgEmail{Email: s.senderEmail, Name: s.senderName},
		Subject: fmt.Sprintf("Your %s license key", s.productName),
		Content: []sgContent{
			{
				Type: "text/plain",
				Value: fmt.Sprintf(
					"Hello %s,\n\nYour %s license key is:\n\n%s\n\nActivate it on your device to get started. The key is valid on a single device.\n",
					customerName, s.productName, licenseKey),
			},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SendGrid answers 202 on success.
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail delivery failed: status=%d body=%s", resp.StatusCode, detail)
	}
	return nil
}

// NoopNotifier is used when no mail provider is configured, e.g. in
// development mode. It accepts every send.
type NoopNotifier struct{}

// SendLicenseKey implements Notifier.
func (NoopNotifier) SendLicenseKey(ctx context.Context, email, customerName, licenseKey string) error {
	return nil
}
