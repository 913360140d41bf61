// Package http contains the chi HTTP handlers for the license, webhook,
// backup, and health endpoints.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apiErrors "licenseapi/internal/errors"
	"licenseapi/internal/infrastructure"
	"licenseapi/internal/license"
	"licenseapi/internal/services"
	api "licenseapi/pkg/contracts/api/v1"
)

// validate is the shared request validator for all handlers.
var validate = validator.New()

// LicenseHandler handles license-related HTTP requests.
type LicenseHandler struct {
	service services.LicenseService
	logger  *slog.Logger
}

// NewLicenseHandler creates a new license handler.
func NewLicenseHandler(service services.LicenseService, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "license")),
	}
}

// activateRequest wraps the contract type with render.Binder validation.
type activateRequest struct {
	api.LicenseActivateRequest
}

// Bind implements the render.Binder interface. The key format is rejected
// here, before any store access.
func (req *activateRequest) Bind(r *http.Request) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	if !license.ValidKeyFormat(req.LicenseKey) {
		return license.ErrInvalidInput
	}
	return nil
}

type verifyRequest struct {
	api.LicenseVerifyRequest
}

// Bind implements the render.Binder interface.
func (req *verifyRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

type issueRequest struct {
	api.LicenseIssueRequest
}

// Bind implements the render.Binder interface.
func (req *issueRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

type revokeRequest struct {
	api.LicenseRevokeRequest
}

// Bind implements the render.Binder interface.
func (req *revokeRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

type revokeByEmailRequest struct {
	api.LicenseRevokeByEmailRequest
}

// Bind implements the render.Binder interface.
func (req *revokeByEmailRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

type rebindRequest struct {
	api.LicenseRebindRequest
}

// Bind implements the render.Binder interface.
func (req *rebindRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

// issueResponse is the issuance payload defined by the API contract.
type issueResponse struct {
	Success        bool      `json:"success"`
	LicenseKey     string    `json:"license_key"`
	Email          string    `json:"email"`
	CustomerName   string    `json:"customer_name"`
	ExpirationDate time.Time `json:"expiration_date"`
	EmailSent      bool      `json:"email_sent"`
	EmailError     string    `json:"email_error,omitempty"`
}

// Routes returns the public (device-facing) license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))
	r.Post("/activate", h.Activate)
	r.Post("/verify", h.Verify)
	return r
}

// AdminRoutes returns the administrative license endpoints; the caller
// mounts them behind the admin gate.
func (h *LicenseHandler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))
	r.Post("/", h.Issue)
	r.Get("/{licenseKey}", h.Get)
	r.Post("/revoke", h.Revoke)
	r.Post("/revoke-by-email", h.RevokeByEmail)
	r.Post("/rebind", h.Rebind)
	return r
}

// Activate handles POST /api/license/activate.
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.activate",
		trace.WithAttributes(attribute.String("http.route", "/api/license/activate")))
	defer span.End()
	r = r.WithContext(ctx)

	req := &activateRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderLicenseError(w, r, license.ErrInvalidInput, r.URL.Path)
		return
	}

	result, err := h.service.Activate(ctx, req.LicenseKey, req.DeviceID, req.DeviceInfo)
	if err != nil {
		h.renderLicenseError(w, r, err, r.URL.Path)
		return
	}

	h.logger.InfoContext(ctx, "activation request served",
		slog.String("license_key", license.MaskKey(req.LicenseKey)),
		slog.String("outcome", string(result.Outcome)))
	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// Verify handles POST /api/license/verify.
func (h *LicenseHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.verify",
		trace.WithAttributes(attribute.String("http.route", "/api/license/verify")))
	defer span.End()
	r = r.WithContext(ctx)

	req := &verifyRequest{}
	if err := render.Bind(r, req); err != nil {
		h.renderLicenseError(w, r, license.ErrInvalidInput, r.URL.Path)
		return
	}

	result, err := h.service.Verify(ctx, req.LicenseKey, req.DeviceID)
	if err != nil {
		h.renderLicenseError(w, r, err, r.URL.Path)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// Issue handles POST /api/admin/licenses.
func (h *LicenseHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.issue")
	defer span.End()
	r = r.WithContext(ctx)

	req := &issueRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apiErrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.Issue(ctx, req.Email, req.CustomerName)
	if err != nil {
		h.renderLicenseError(w, r, err, r.URL.Path)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, issueResponse{
		Success:        true,
		LicenseKey:     result.License.LicenseKey,
		Email:          result.License.Email,
		CustomerName:   result.License.CustomerName,
		ExpirationDate: result.License.ExpirationDate,
		EmailSent:      result.EmailSent,
		EmailError:     result.EmailError,
	})
}

// Get handles GET /api/admin/licenses/{licenseKey}.
func (h *LicenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "licenseKey")

	lic, err := h.service.Get(ctx, key)
	if err != nil {
		h.renderLicenseError(w, r, err, r.URL.Path)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, lic)
}

// Revoke handles POST /api/admin/licenses/revoke.
func (h *LicenseHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.revoke")
	defer span.End()
	r = r.WithContext(ctx)

	req := &revokeRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apiErrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.Revoke(ctx, req.LicenseKey)
	if err != nil {
		h.renderLicenseError(w, r, err, r.URL.Path)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// RevokeByEmail handles POST /api/admin/licenses/revoke-by-email.
func (h *LicenseHandler) RevokeByEmail(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.revoke_by_email")
	defer span.End()
	r = r.WithContext(ctx)

	req := &revokeByEmailRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apiErrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.RevokeByEmail(ctx, req.Email)
	if err != nil {
		h.renderLicenseError(w, r, err, r.URL.Path)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// Rebind handles POST /api/admin/licenses/rebind.
func (h *LicenseHandler) Rebind(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("license-handler").Start(r.Context(), "license_handler.rebind")
	defer span.End()
	r = r.WithContext(ctx)

	req := &rebindRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apiErrors.InvalidRequestWithError(err))
		return
	}

	lic, err := h.service.RebindDevice(ctx, req.LicenseKey, req.NewDeviceID)
	if err != nil {
		h.renderLicenseError(w, r, err, r.URL.Path)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]any{
		"success":   true,
		"message":   "Device rebound",
		"device_id": lic.DeviceID,
	})
}

// renderLicenseError renders an engine error as RFC 7807 with the
// valid=false marker device clients key on.
func (h *LicenseHandler) renderLicenseError(w http.ResponseWriter, r *http.Request, err error, instance string) {
	ctx := r.Context()
	traceID := infrastructure.TraceIDFromContext(ctx)
	pd := apiErrors.FromLicenseError(err, instance, traceID)
	pd.WithExtension("valid", false)

	if pd.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "license request failed",
			slog.String("path", instance),
			slog.String("error", err.Error()))
	}
	render.Render(w, r, pd)
}
