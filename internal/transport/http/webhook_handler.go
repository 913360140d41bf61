package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apiErrors "licenseapi/internal/errors"
	"licenseapi/internal/infrastructure"
	"licenseapi/internal/services"
	api "licenseapi/pkg/contracts/api/v1"
)

// WebhookHandler receives payment-platform events.
type WebhookHandler struct {
	service services.WebhookService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service services.WebhookService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "webhook")),
	}
}

type webhookRequest struct {
	api.PurchaseWebhookRequest
}

// Bind implements the render.Binder interface.
func (req *webhookRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

// Routes returns the webhook endpoints.
func (h *WebhookHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(60 * time.Second))
	r.Post("/purchase", h.Purchase)
	return r
}

// Purchase handles POST /api/webhook/purchase. The payment platform retries
// on non-2xx, so every recognized outcome acknowledges with 200.
func (h *WebhookHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("webhook-handler").Start(r.Context(), "webhook_handler.purchase")
	defer span.End()
	r = r.WithContext(ctx)

	req := &webhookRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apiErrors.InvalidRequestWithError(err))
		return
	}
	span.SetAttributes(attribute.String("webhook.event", req.Event))

	result, err := h.service.ProcessEvent(ctx, req.PurchaseWebhookRequest)
	if err != nil {
		traceID := infrastructure.TraceIDFromContext(ctx)
		h.logger.ErrorContext(ctx, "webhook processing failed",
			slog.String("event", req.Event),
			slog.String("error", err.Error()))
		render.Render(w, r, apiErrors.FromLicenseError(err, r.URL.Path, traceID))
		return
	}

	h.logger.InfoContext(ctx, "webhook processed",
		slog.String("event", req.Event),
		slog.String("message", result.Message))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}
