package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"todocx/internal/config"
)

// ClientCounter reports connected event clients
type ClientCounter interface {
	ClientCount() int
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	paths     *config.Paths
	storage   bool
	asr       bool
	hub       ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	AppName   string                 `json:"app_name"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. storageConfigured and
// asrConfigured report whether the upload target and a fallback ASR key are
// set.
func NewHealthService(version string, paths *config.Paths, storageConfigured, asrConfigured bool, hub ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		paths:     paths,
		storage:   storageConfigured,
		asr:       asrConfigured,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "healthy",
		AppName:   config.AppName,
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"config_dir": hs.checkDir(hs.paths.ConfigDir),
			"output_dir": hs.checkDir(hs.paths.OutputDir),
			"storage":    configured(hs.storage, "object storage"),
			"asr":        configured(hs.asr, "fallback ASR key"),
		},
	}

	for _, svc := range []string{"config_dir", "output_dir"} {
		if sh := status.Services[svc].(ServiceHealth); sh.Status != "ready" {
			status.Status = "degraded"
		}
	}

	hs.logger.DebugContext(ctx, "Health check completed", slog.String("status", status.Status))
	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	runtimeInfo := map[string]interface{}{
		"uptime":     time.Since(hs.startTime).Seconds(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if hs.hub != nil {
		runtimeInfo["websocket_clients"] = hs.hub.ClientCount()
	}
	return HealthStatus{
		Status:    "alive",
		AppName:   config.AppName,
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   runtimeInfo,
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	return map[string]interface{}{
		"app_name":     config.AppName,
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
		"config_dir":   hs.paths.ConfigDir,
		"output_dir":   hs.paths.OutputDir,
	}
}

// checkDir reports whether dir exists and accepts writes
func (hs *HealthService) checkDir(dir string) ServiceHealth {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("Directory not found: %s", dir)}
	}
	probe, err := os.CreateTemp(dir, ".health-*")
	if err != nil {
		return ServiceHealth{Status: "not_ready", Message: fmt.Sprintf("Cannot write to %s: %v", filepath.Base(dir), err)}
	}
	probe.Close()
	os.Remove(probe.Name())
	return ServiceHealth{Status: "ready"}
}

func configured(ok bool, what string) ServiceHealth {
	if !ok {
		return ServiceHealth{Status: "not_configured", Message: what + " not configured"}
	}
	return ServiceHealth{Status: "ready"}
}
