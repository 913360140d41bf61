package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseapi/internal/services"
	"licenseapi/internal/shared/testutil"
	transport "licenseapi/internal/transport/http"
)

func newHealthRouter(t *testing.T, checkers map[string]services.HealthChecker) chi.Router {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	svc := services.NewHealthService("test", checkers, logger)
	r := chi.NewRouter()
	r.Mount("/api/health", transport.NewHealthHandler(svc, logger).Routes())
	return r
}

func getJSON(t *testing.T, router http.Handler, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthHandlerHealthCheck(t *testing.T) {
	router := newHealthRouter(t, nil)
	rec, body := getJSON(t, router, "/api/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestHealthHandlerLiveness(t *testing.T) {
	router := newHealthRouter(t, nil)
	rec, body := getJSON(t, router, "/api/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", body["status"])
}

func TestHealthHandlerReadiness(t *testing.T) {
	t.Run("ready when all probes pass", func(t *testing.T) {
		router := newHealthRouter(t, map[string]services.HealthChecker{
			"database": func(ctx context.Context) error { return nil },
		})
		rec, body := getJSON(t, router, "/api/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("degraded when a probe fails", func(t *testing.T) {
		router := newHealthRouter(t, map[string]services.HealthChecker{
			"database": func(ctx context.Context) error { return nil },
			"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
		})
		rec, body := getJSON(t, router, "/api/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "degraded", body["status"])

		servicesMap := body["services"].(map[string]any)
		redis := servicesMap["redis"].(map[string]any)
		assert.Equal(t, "unhealthy", redis["status"])
	})
}
