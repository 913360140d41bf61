package services

import (
	"context"
	"log/slog"
	"runtime"
	"time"
)

// HealthChecker reports whether one dependency is reachable.
type HealthChecker func(ctx context.Context) error

// HealthStatus represents the health status response.
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual dependency health.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthService provides liveness and readiness checks over the service's
// dependencies (license store, backup vault, cache).
type HealthService struct {
	version   string
	startTime time.Time
	checkers  map[string]HealthChecker
	logger    *slog.Logger
}

// NewHealthService creates a new health service. Checkers are probed on
// readiness, keyed by dependency name.
func NewHealthService(version string, checkers map[string]HealthChecker, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		startTime: time.Now(),
		checkers:  checkers,
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns the basic process health.
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"go_version":     runtime.Version(),
			"goroutines":     runtime.NumGoroutine(),
			"uptime_seconds": time.Since(hs.startTime).Seconds(),
		},
	}
}

// ReadinessCheck probes every registered dependency. The overall status is
// degraded when any probe fails; callers map that to 503.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}, len(hs.checkers)),
	}
	for name, check := range hs.checkers {
		probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := check(probeCtx)
		cancel()
		if err != nil {
			hs.logger.WarnContext(ctx, "readiness probe failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()))
			status.Status = "degraded"
			status.Services[name] = ServiceHealth{Status: "unhealthy", Message: err.Error()}
			continue
		}
		status.Services[name] = ServiceHealth{Status: "healthy"}
	}
	return status
}

// LivenessCheck reports that the process is alive.
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// Version returns build information.
func (hs *HealthService) Version() map[string]interface{} {
	return map[string]interface{}{
		"version":    hs.version,
		"go_version": runtime.Version(),
		"started_at": hs.startTime.Format(time.RFC3339),
	}
}
