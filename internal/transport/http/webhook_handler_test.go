package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"licenseapi/internal/license"
	"licenseapi/internal/services"
	"licenseapi/internal/shared/testutil"
	transport "licenseapi/internal/transport/http"
	api "licenseapi/pkg/contracts/api/v1"
)

// MockWebhookService is a testify mock for the webhook processor.
type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) ProcessEvent(ctx context.Context, event api.PurchaseWebhookRequest) (*services.WebhookResult, error) {
	args := m.Called(ctx, event)
	if result := args.Get(0); result != nil {
		return result.(*services.WebhookResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func newWebhookRouter(t *testing.T, svc services.WebhookService) chi.Router {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	r := chi.NewRouter()
	r.Mount("/api/webhook", transport.NewWebhookHandler(svc, logger).Routes())
	return r
}

func TestWebhookHandlerPurchase(t *testing.T) {
	t.Run("acknowledges a processed purchase", func(t *testing.T) {
		svc := &MockWebhookService{}
		svc.On("ProcessEvent", mock.Anything, mock.MatchedBy(func(e api.PurchaseWebhookRequest) bool {
			return e.Event == api.EventPurchaseApproved && e.Data.Buyer.Email == "buyer@example.com"
		})).Return(&services.WebhookResult{
			Success:    true,
			Message:    "License issued",
			Event:      api.EventPurchaseApproved,
			LicenseKey: testutil.PendingKey,
			EmailSent:  true,
		}, nil)
		router := newWebhookRouter(t, svc)

		rec := postJSON(t, router, "/api/webhook/purchase", map[string]any{
			"event": api.EventPurchaseApproved,
			"data": map[string]any{
				"buyer":   map[string]any{"email": "buyer@example.com", "name": "Buyer"},
				"product": map[string]any{"id": "prod-1", "name": "ControlaAI"},
			},
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, testutil.PendingKey, body["license_key"])
		svc.AssertExpectations(t)
	})

	t.Run("missing event field is a bad request", func(t *testing.T) {
		svc := &MockWebhookService{}
		router := newWebhookRouter(t, svc)

		rec := postJSON(t, router, "/api/webhook/purchase", map[string]any{
			"data": map[string]any{},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "ProcessEvent", mock.Anything, mock.Anything)
	})

	t.Run("processing failure surfaces the taxonomy status", func(t *testing.T) {
		svc := &MockWebhookService{}
		svc.On("ProcessEvent", mock.Anything, mock.Anything).
			Return(nil, license.ErrStoreUnavailable)
		router := newWebhookRouter(t, svc)

		rec := postJSON(t, router, "/api/webhook/purchase", map[string]any{
			"event": api.EventPurchase,
			"data": map[string]any{
				"buyer": map[string]any{"email": "buyer@example.com"},
			},
		})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
