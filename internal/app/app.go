// Package app wires configuration, storage, services, and the HTTP router
// into a runnable application.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"licenseapi/internal/backup"
	"licenseapi/internal/config"
	"licenseapi/internal/infrastructure"
	"licenseapi/internal/license"
	"licenseapi/internal/middleware"
	"licenseapi/internal/notify"
	"licenseapi/internal/services"
	"licenseapi/internal/store"
	httptransport "licenseapi/internal/transport/http"
)

// Application represents the license service with all its dependencies.
type Application struct {
	config *config.Config
	logger *slog.Logger
	otel   *infrastructure.OTelProviders

	db          *gorm.DB
	redisClient *redis.Client

	licenseService services.LicenseService
	webhookService services.WebhookService
	backupService  services.BackupService
	healthService  *services.HealthService

	router chi.Router
	server *http.Server
}

// New creates a fully wired application from configuration.
func New() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates the application from an already loaded configuration.
func NewWithConfig(cfg *config.Config) (*Application, error) {
	logger, err := infrastructure.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(logger)

	otelProviders, err := infrastructure.InitializeOTel(nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	metrics, err := infrastructure.CreateBusinessMetrics(otelProviders.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	app := &Application{
		config: cfg,
		logger: logger,
		otel:   otelProviders,
	}

	licenseStore, vault, err := app.setupStorage()
	if err != nil {
		return nil, err
	}

	notifier := app.setupNotifier()

	engine := license.NewEngine(licenseStore, license.UUIDKeyGenerator{}, license.Options{
		AllowDuplicateEmails: cfg.License.AllowDuplicateEmails,
		StoreTimeout:         cfg.License.StoreTimeout,
		ProductName:          cfg.License.ProductName,
	}, logger)

	app.licenseService = services.NewLicenseService(engine, notifier, metrics, logger)
	app.webhookService = services.NewWebhookService(engine, notifier, metrics, logger)
	app.backupService = services.NewBackupService(vault, metrics, logger)
	app.healthService = services.NewHealthService(
		infrastructure.ServiceVersion, app.healthCheckers(), logger)

	app.router = app.setupRouter()
	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      app.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info("application initialized",
		slog.String("store", strings.ToLower(cfg.Database.Driver)),
		slog.Bool("cache", cfg.Redis.Enabled),
		slog.Bool("mail", cfg.Mail.Enabled),
		slog.Bool("admin_gate", cfg.AdminConfigured()),
		slog.Int("port", cfg.Server.Port))
	return app, nil
}

// setupStorage selects the license store and backup vault backends. The
// postgres driver serves both; memory keeps everything in-process.
func (app *Application) setupStorage() (license.Store, backup.Vault, error) {
	cfg := app.config

	if strings.ToLower(cfg.Database.Driver) == "memory" {
		app.logger.Warn("using in-memory storage, state is lost on restart")
		return store.NewMemoryStore(), backup.NewMemoryVault(), nil
	}

	db, err := store.OpenPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	app.db = db

	var licenseStore license.Store = store.NewPostgresStore(db)
	if cfg.Redis.Enabled {
		app.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		licenseStore = store.NewCachedStore(licenseStore, app.redisClient, cfg.Redis.CacheTTL, app.logger)
	}
	return licenseStore, store.NewPostgresVault(db), nil
}

// setupNotifier returns the mail gateway, or a no-op when mail is disabled.
func (app *Application) setupNotifier() notify.Notifier {
	cfg := app.config
	if !cfg.Mail.Enabled {
		return notify.NoopNotifier{}
	}
	return notify.NewEmailSender(
		cfg.Mail.APIURL,
		cfg.Mail.APIKey,
		cfg.Mail.SenderEmail,
		cfg.Mail.SenderName,
		cfg.License.ProductName,
	)
}

func (app *Application) healthCheckers() map[string]services.HealthChecker {
	checkers := make(map[string]services.HealthChecker)
	if app.db != nil {
		db := app.db
		checkers["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if app.redisClient != nil {
		client := app.redisClient
		checkers["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checkers
}

// setupRouter assembles the middleware chain and mounts all handlers.
func (app *Application) setupRouter() chi.Router {
	cfg := app.config
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(app.logger))
	r.Use(middleware.Recoverer(app.logger))
	r.Use(middleware.SecurityHeaders)
	if cfg.Security.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: cfg.Security.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "Authorization", "X-Admin-Key", "X-Request-ID"},
			MaxAge:         300,
		}))
	}

	licenseHandler := httptransport.NewLicenseHandler(app.licenseService, app.logger)
	webhookHandler := httptransport.NewWebhookHandler(app.webhookService, app.logger)
	backupHandler := httptransport.NewBackupHandler(app.backupService, app.logger)
	healthHandler := httptransport.NewHealthHandler(app.healthService, app.logger)

	// Health and metrics stay outside the rate limit.
	r.Mount("/api/health", healthHandler.Routes())
	r.Get("/api/version", healthHandler.Version)
	r.Handle("/metrics", app.otel.PrometheusHTTP)

	r.Group(func(r chi.Router) {
		if cfg.Security.RateLimit.Enabled {
			limiter := middleware.NewRateLimiter(
				cfg.Security.RateLimit.RPS, cfg.Security.RateLimit.Burst, app.logger)
			r.Use(limiter.Handler)
		}

		r.Mount("/api/license", licenseHandler.Routes())
		r.Mount("/api/webhook", webhookHandler.Routes())
		r.Mount("/api/backup", backupHandler.Routes())

		gate := middleware.NewAdminGate(cfg.Admin.KeyHash, cfg.Admin.Key, app.logger)
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(gate.Handler)
			r.Mount("/licenses", licenseHandler.AdminRoutes())
		})
	})

	return r
}

// Router exposes the assembled handler, for tests.
func (app *Application) Router() chi.Router {
	return app.router
}

// Start runs the HTTP server until the context is canceled, then shuts it
// down gracefully.
func (app *Application) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("http server listening", slog.String("addr", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()
	return app.Stop(shutdownCtx)
}

// Stop shuts down the server and releases external connections.
func (app *Application) Stop(ctx context.Context) error {
	if err := app.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if app.redisClient != nil {
		if err := app.redisClient.Close(); err != nil {
			app.logger.Warn("redis close failed", slog.String("error", err.Error()))
		}
	}
	if app.db != nil {
		if sqlDB, err := app.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				app.logger.Warn("database close failed", slog.String("error", err.Error()))
			}
		}
	}
	if err := app.otel.Shutdown(ctx); err != nil {
		app.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
	}
	app.logger.Info("shutdown complete")
	return nil
}
