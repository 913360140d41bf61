package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"licenseapi/internal/middleware"
	"licenseapi/internal/shared/testutil"
)

func gateRequest(t *testing.T, gate *middleware.AdminGate, decorate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/licenses", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	gate.Handler(okHandler()).ServeHTTP(rec, req)
	return rec
}

func TestAdminGatePlainKey(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	gate := middleware.NewAdminGate("", "dev-secret", logger)

	t.Run("accepts matching X-Admin-Key header", func(t *testing.T) {
		rec := gateRequest(t, gate, func(r *http.Request) {
			r.Header.Set("X-Admin-Key", "dev-secret")
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("accepts matching bearer token", func(t *testing.T) {
		rec := gateRequest(t, gate, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer dev-secret")
		})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects wrong key", func(t *testing.T) {
		rec := gateRequest(t, gate, func(r *http.Request) {
			r.Header.Set("X-Admin-Key", "guess")
		})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	})

	t.Run("rejects missing credential", func(t *testing.T) {
		rec := gateRequest(t, gate, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAdminGateBcryptHash(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("prod-secret"), bcrypt.MinCost)
	require.NoError(t, err)

	// The plaintext fallback must be ignored once a hash is configured.
	gate := middleware.NewAdminGate(string(hash), "other-key", logger)

	rec := gateRequest(t, gate, func(r *http.Request) {
		r.Header.Set("X-Admin-Key", "prod-secret")
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = gateRequest(t, gate, func(r *http.Request) {
		r.Header.Set("X-Admin-Key", "other-key")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminGateUnconfigured(t *testing.T) {
	logger, records := testutil.NewTestLogger(t)
	gate := middleware.NewAdminGate("", "", logger)

	rec := gateRequest(t, gate, func(r *http.Request) {
		r.Header.Set("X-Admin-Key", "anything")
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, records.ContainsMessage("admin authentication failed"))
}
