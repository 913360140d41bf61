// Package config loads service configuration from environment variables
// (prefix LICENSE) with an optional YAML file underneath. Environment
// values take precedence over the file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the envconfig prefix for every setting.
const EnvPrefix = "LICENSE"

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	Redis    RedisConfig    `yaml:"redis" envconfig:"REDIS"`
	License  LicenseConfig  `yaml:"license" envconfig:"LICENSE"`
	Admin    AdminConfig    `yaml:"admin" envconfig:"ADMIN"`
	Mail     MailConfig     `yaml:"mail" envconfig:"MAIL"`
	Security SecurityConfig `yaml:"security" envconfig:"SECURITY"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// DatabaseConfig selects and configures the license store backend.
type DatabaseConfig struct {
	// Driver is "postgres" or "memory". Memory is for development and
	// tests only; it loses all state on restart.
	Driver string `yaml:"driver" envconfig:"DRIVER" default:"memory"`
	DSN    string `yaml:"dsn" envconfig:"DSN"`
}

// RedisConfig configures the optional license read cache.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Addr     string        `yaml:"addr" envconfig:"ADDR" default:"localhost:6379"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB" default:"0"`
	CacheTTL time.Duration `yaml:"cache_ttl" envconfig:"CACHE_TTL" default:"30s"`
}

// LicenseConfig contains lifecycle engine policy.
type LicenseConfig struct {
	// AllowDuplicateEmails disables the one-license-per-email issuance
	// policy.
	AllowDuplicateEmails bool `yaml:"allow_duplicate_emails" envconfig:"ALLOW_DUPLICATE_EMAILS" default:"false"`
	// StoreTimeout bounds every store call made by the engine.
	StoreTimeout time.Duration `yaml:"store_timeout" envconfig:"STORE_TIMEOUT" default:"5s"`
	ProductName  string        `yaml:"product_name" envconfig:"PRODUCT_NAME" default:"ControlaAI"`
}

// AdminConfig gates the administrative operations (issue, revoke, rebind).
type AdminConfig struct {
	// KeyHash is the bcrypt hash of the admin key. Preferred in
	// production.
	KeyHash string `yaml:"key_hash" envconfig:"KEY_HASH"`
	// Key is a plaintext admin key, compared in constant time. Intended
	// for development; ignored when KeyHash is set.
	Key string `yaml:"key" envconfig:"KEY"`
}

// MailConfig configures the notification gateway.
type MailConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	APIURL      string `yaml:"api_url" envconfig:"API_URL"`
	APIKey      string `yaml:"api_key" envconfig:"API_KEY"`
	SenderEmail string `yaml:"sender_email" envconfig:"SENDER_EMAIL"`
	SenderName  string `yaml:"sender_name" envconfig:"SENDER_NAME" default:"License Support"`
}

// SecurityConfig contains CORS and rate limiting configuration.
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"*"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS" default:"true"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"100"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"50"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Output string `yaml:"output" envconfig:"OUTPUT" default:"stdout"`
	// FilePath is used when Output is "file" or "both".
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/licenseapi.log"`
}

// Load reads configuration from the environment and, if present, the YAML
// file named by LICENSE_CONFIG_FILE (default config.yml).
func Load() (*Config, error) {
	var cfg Config

	configFile := os.Getenv(EnvPrefix + "_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yml"
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := loadFromFile(configFile, &cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Environment variables override the file; envconfig fills defaults
	// for anything still unset.
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch strings.ToLower(c.Database.Driver) {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database driver %q requires a DSN", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.Database.Driver)
	}
	if c.Mail.Enabled {
		if c.Mail.APIKey == "" {
			return fmt.Errorf("mail is enabled but no API key is configured")
		}
		if c.Mail.SenderEmail == "" {
			return fmt.Errorf("mail is enabled but no sender email is configured")
		}
	}
	if c.Security.RateLimit.Enabled && c.Security.RateLimit.RPS <= 0 {
		return fmt.Errorf("rate limiting enabled with non-positive rps")
	}
	return nil
}

// AdminConfigured reports whether any administrative credential is set.
// With neither a hash nor a plain key, admin endpoints reject everything.
func (c *Config) AdminConfigured() bool {
	return c.Admin.KeyHash != "" || c.Admin.Key != ""
}
