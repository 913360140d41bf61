package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"licenseapi/internal/infrastructure"
)

// AdminGate guards administrative endpoints (issue, revoke, rebind). The
// presented key comes from the X-Admin-Key header or a bearer token. When a
// bcrypt hash is configured it is authoritative; the plaintext key is a
// development fallback compared in constant time. With neither configured
// every request is rejected.
type AdminGate struct {
	keyHash  string
	plainKey string
	logger   *slog.Logger
}

// NewAdminGate creates the administrative credential gate.
func NewAdminGate(keyHash, plainKey string, logger *slog.Logger) *AdminGate {
	return &AdminGate{
		keyHash:  keyHash,
		plainKey: plainKey,
		logger:   logger.With(slog.String("component", "admin_gate")),
	}
}

// Handler rejects requests without a valid administrative credential.
func (g *AdminGate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		presented := presentedKey(r)

		if presented == "" || !g.valid(presented) {
			g.logger.WarnContext(ctx, "admin authentication failed",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusUnauthorized)
			traceID := infrastructure.GetTraceID(ctx)
			response := `{"type":"/errors/unauthorized","title":"Unauthorized","status":401,"detail":"A valid administrative credential is required","trace_id":"` + traceID + `"}`
			w.Write([]byte(response))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func presentedKey(r *http.Request) string {
	if key := r.Header.Get("X-Admin-Key"); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func (g *AdminGate) valid(presented string) bool {
	if g.keyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(g.keyHash), []byte(presented)) == nil
	}
	if g.plainKey != "" {
		return subtle.ConstantTimeCompare([]byte(g.plainKey), []byte(presented)) == 1
	}
	return false
}
