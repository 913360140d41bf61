package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"licenseapi/internal/backup"
	"licenseapi/internal/services"
	"licenseapi/internal/shared/testutil"
	transport "licenseapi/internal/transport/http"
	api "licenseapi/pkg/contracts/api/v1"
	"licenseapi/pkg/contracts/domain"
)

// MockBackupService is a testify mock for the backup service.
type MockBackupService struct {
	mock.Mock
}

func (m *MockBackupService) Save(ctx context.Context, email string, payload api.BackupSavePayload) (*services.BackupSaveResult, error) {
	args := m.Called(ctx, email, payload)
	if result := args.Get(0); result != nil {
		return result.(*services.BackupSaveResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBackupService) Restore(ctx context.Context, email string) (*services.BackupRestoreResult, error) {
	args := m.Called(ctx, email)
	if result := args.Get(0); result != nil {
		return result.(*services.BackupRestoreResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func newBackupRouter(t *testing.T, svc services.BackupService) chi.Router {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	r := chi.NewRouter()
	r.Mount("/api/backup", transport.NewBackupHandler(svc, logger).Routes())
	return r
}

func TestBackupHandlerSave(t *testing.T) {
	t.Run("stores a snapshot", func(t *testing.T) {
		svc := &MockBackupService{}
		svc.On("Save", mock.Anything, "user@example.com", mock.Anything).
			Return(&services.BackupSaveResult{
				Email:     "user@example.com",
				Timestamp: time.Now().UTC(),
				Stats:     domain.BackupStats{Transactions: 2},
			}, nil)
		router := newBackupRouter(t, svc)

		rec := postJSON(t, router, "/api/backup/", map[string]any{
			"email": "user@example.com",
			"data": map[string]any{
				"transactions": []map[string]any{{"id": 1}, {"id": 2}},
			},
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "user@example.com", body["email"])
		svc.AssertExpectations(t)
	})

	t.Run("rejects missing email", func(t *testing.T) {
		svc := &MockBackupService{}
		router := newBackupRouter(t, svc)

		rec := postJSON(t, router, "/api/backup/", map[string]any{
			"data": map[string]any{},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		svc.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestBackupHandlerRestore(t *testing.T) {
	t.Run("returns the stored snapshot", func(t *testing.T) {
		svc := &MockBackupService{}
		svc.On("Restore", mock.Anything, "user@example.com").
			Return(&services.BackupRestoreResult{
				Record: &domain.BackupRecord{
					Email:        "user@example.com",
					Transactions: json.RawMessage(`[{"id":1}]`),
					Version:      domain.BackupSchemaVersion,
					LastBackup:   time.Now().UTC(),
				},
				Stats: domain.BackupStats{Transactions: 1},
			}, nil)
		router := newBackupRouter(t, svc)

		rec := postJSON(t, router, "/api/backup/restore", map[string]any{
			"email": "user@example.com",
		})

		assert.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		record := body["data"].(map[string]any)
		assert.Equal(t, "user@example.com", record["email"])
	})

	t.Run("missing snapshot maps to 404 with has_backup=false", func(t *testing.T) {
		svc := &MockBackupService{}
		svc.On("Restore", mock.Anything, "nobody@example.com").
			Return(nil, backup.ErrNotFound)
		router := newBackupRouter(t, svc)

		rec := postJSON(t, router, "/api/backup/restore", map[string]any{
			"email": "nobody@example.com",
		})

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, false, body["has_backup"])
	})

	t.Run("vault outage maps to 503", func(t *testing.T) {
		svc := &MockBackupService{}
		svc.On("Restore", mock.Anything, "user@example.com").
			Return(nil, backup.ErrVaultUnavailable)
		router := newBackupRouter(t, svc)

		rec := postJSON(t, router, "/api/backup/restore", map[string]any{
			"email": "user@example.com",
		})
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}
