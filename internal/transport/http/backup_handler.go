package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"

	apiErrors "licenseapi/internal/errors"
	"licenseapi/internal/infrastructure"
	"licenseapi/internal/services"
	api "licenseapi/pkg/contracts/api/v1"
)

// BackupHandler handles financial snapshot save and restore requests.
type BackupHandler struct {
	service services.BackupService
	logger  *slog.Logger
}

// NewBackupHandler creates a new backup handler.
func NewBackupHandler(service services.BackupService, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "backup")),
	}
}

type backupSaveRequest struct {
	api.BackupSaveRequest
}

// Bind implements the render.Binder interface.
func (req *backupSaveRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

type backupRestoreRequest struct {
	api.BackupRestoreRequest
}

// Bind implements the render.Binder interface.
func (req *backupRestoreRequest) Bind(r *http.Request) error {
	return validate.Struct(req)
}

// Routes returns the backup endpoints.
func (h *BackupHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Timeout(30 * time.Second))
	r.Post("/", h.Save)
	r.Post("/restore", h.Restore)
	return r
}

// Save handles POST /api/backup. A save fully replaces the previous
// snapshot for the email.
func (h *BackupHandler) Save(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("backup-handler").Start(r.Context(), "backup_handler.save")
	defer span.End()
	r = r.WithContext(ctx)

	req := &backupSaveRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apiErrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.Save(ctx, req.Email, req.Data)
	if err != nil {
		h.renderBackupError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// Restore handles POST /api/backup/restore.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("backup-handler").Start(r.Context(), "backup_handler.restore")
	defer span.End()
	r = r.WithContext(ctx)

	req := &backupRestoreRequest{}
	if err := render.Bind(r, req); err != nil {
		render.Render(w, r, apiErrors.InvalidRequestWithError(err))
		return
	}

	result, err := h.service.Restore(ctx, req.Email)
	if err != nil {
		h.renderBackupError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

func (h *BackupHandler) renderBackupError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	traceID := infrastructure.TraceIDFromContext(ctx)
	pd := apiErrors.FromBackupError(err, r.URL.Path, traceID)
	if pd.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "backup request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	render.Render(w, r, pd)
}
