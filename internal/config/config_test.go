package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseapi/internal/config"
)

// pointConfigFile keeps Load away from any config.yml in the working
// directory.
func pointConfigFile(t *testing.T, path string) {
	t.Helper()
	if path == "" {
		path = filepath.Join(t.TempDir(), "absent.yml")
	}
	t.Setenv("LICENSE_CONFIG_FILE", path)
}

func TestLoadDefaults(t *testing.T) {
	pointConfigFile(t, "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.License.AllowDuplicateEmails)
	assert.Equal(t, 5*time.Second, cfg.License.StoreTimeout)
	assert.Equal(t, "ControlaAI", cfg.License.ProductName)
	assert.False(t, cfg.Mail.Enabled)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.AdminConfigured())
}

func TestLoadFromYAMLFile(t *testing.T) {
	content := `
server:
  port: 9090
database:
  driver: postgres
  dsn: "host=localhost user=licenses dbname=licenses"
license:
  allow_duplicate_emails: true
  product_name: OtherProduct
admin:
  key: dev-admin-key
`
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	pointConfigFile(t, path)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.License.AllowDuplicateEmails)
	assert.Equal(t, "OtherProduct", cfg.License.ProductName)
	assert.True(t, cfg.AdminConfigured())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	content := "server:\n  port: 9090\n"
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	pointConfigFile(t, path)
	t.Setenv("LICENSE_SERVER_PORT", "7070")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "postgres without dsn",
			env:  map[string]string{"LICENSE_DATABASE_DRIVER": "postgres"},
		},
		{
			name: "unknown driver",
			env:  map[string]string{"LICENSE_DATABASE_DRIVER": "sqlite"},
		},
		{
			name: "mail enabled without api key",
			env: map[string]string{
				"LICENSE_MAIL_ENABLED":      "true",
				"LICENSE_MAIL_SENDER_EMAIL": "noreply@controla.ai",
			},
		},
		{
			name: "mail enabled without sender",
			env: map[string]string{
				"LICENSE_MAIL_ENABLED": "true",
				"LICENSE_MAIL_API_KEY": "sg-key",
			},
		},
		{
			name: "rate limit with zero rps",
			env: map[string]string{
				"LICENSE_SECURITY_RATE_LIMIT_ENABLED": "true",
				"LICENSE_SECURITY_RATE_LIMIT_RPS":     "0",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pointConfigFile(t, "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestAdminConfigured(t *testing.T) {
	cfg := &config.Config{}
	assert.False(t, cfg.AdminConfigured())
	cfg.Admin.Key = "plain"
	assert.True(t, cfg.AdminConfigured())
	cfg.Admin.Key = ""
	cfg.Admin.KeyHash = "$2a$10$abcdefghijklmnopqrstuv"
	assert.True(t, cfg.AdminConfigured())
}
