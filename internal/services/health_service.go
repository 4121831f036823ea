package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"salesdash/internal/config"
	"salesdash/pkg/contracts"
	api "salesdash/pkg/contracts/api/v1"
)

// QueueStater reports job queue statistics
type QueueStater interface {
	GetQueueStats() map[string]interface{}
}

// HubStater reports WebSocket hub counters
type HubStater interface {
	ClientCount() int
	GetHubMetrics() map[string]interface{}
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	paths     *config.Paths
	queue     QueueStater
	hub       HubStater
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	TotalFiles       int     `json:"total_files"`
	TotalSizeBytes   int64   `json:"total_size_bytes"`
	WebSocketClients int     `json:"websocket_clients"`
	MessagesSent     int64   `json:"messages_sent"`
	DroppedMessages  int64   `json:"dropped_messages"`
	ActiveRuns       int     `json:"active_runs"`
	QueuedRuns       int     `json:"queued_runs"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// NewHealthService creates a new health service
func NewHealthService(version, buildTime string, paths *config.Paths, queue QueueStater, hub HubStater, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		paths:     paths,
		queue:     queue,
		hub:       hub,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns the short status served on /healthz
func (hs *HealthService) HealthCheck(ctx context.Context) api.HealthResponse {
	resp := api.HealthResponse{
		Status:  "ok",
		Version: hs.version,
	}
	if hs.queue != nil {
		resp.Queue = statInt(hs.queue.GetQueueStats(), "queue_size")
	}

	hs.logger.DebugContext(ctx, "health check",
		slog.String("status", resp.Status),
		slog.Int("queued_runs", resp.Queue))

	return resp
}

// ReadinessCheck returns readiness status
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services: map[string]interface{}{
			"queue":     hs.checkQueueHealth(),
			"websocket": hs.checkWebSocketHealth(),
			"data":      hs.checkDataHealth(),
		},
	}

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version describes the running build
func (hs *HealthService) Version() api.VersionResponse {
	info := contracts.GetVersionInfo()
	info.Version = hs.version
	if hs.buildTime != "" {
		info.BuildTime = hs.buildTime
	}
	return api.VersionResponse{
		VersionInfo: info,
		Name:        config.AppName,
		Uptime:      time.Since(hs.startTime).Seconds(),
		StartTime:   hs.startTime,
	}
}

// SystemStats returns system statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	var totalFiles int
	var totalSize int64

	if hs.paths != nil {
		err := filepath.Walk(hs.paths.DataDir, func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				totalFiles++
				totalSize += info.Size()
			}
			return nil
		})
		if err != nil {
			return SystemStats{}, fmt.Errorf("failed to scan data dir: %w", err)
		}
	}

	stats := SystemStats{
		UptimeSeconds:  time.Since(hs.startTime).Seconds(),
		TotalFiles:     totalFiles,
		TotalSizeBytes: totalSize,
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
	}
	if hs.hub != nil {
		h := hs.hub.GetHubMetrics()
		stats.WebSocketClients = statInt(h, "active_clients")
		stats.MessagesSent, _ = h["messages_sent"].(int64)
		stats.DroppedMessages, _ = h["dropped_messages"].(int64)
	}
	if hs.queue != nil {
		q := hs.queue.GetQueueStats()
		stats.ActiveRuns = statInt(q, "active_jobs")
		stats.QueuedRuns = statInt(q, "queue_size")
	}
	return stats, nil
}

func (hs *HealthService) checkQueueHealth() ServiceHealth {
	if hs.queue == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "job queue not initialized",
		}
	}

	q := hs.queue.GetQueueStats()
	if statInt(q, "workers") == 0 {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "job queue has no workers",
		}
	}
	if capacity := statInt(q, "queue_cap"); capacity > 0 && statInt(q, "queue_size") >= capacity {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "job queue is full",
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "job queue is accepting runs",
	}
}

func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.hub == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "WebSocket hub not initialized",
		}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.hub.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkDataHealth checks that downloads and reports can be written
func (hs *HealthService) checkDataHealth() ServiceHealth {
	if hs.paths == nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: "paths not configured",
		}
	}

	for _, dir := range []string{hs.paths.DownloadsDir, hs.paths.ReportsDir} {
		f, err := os.CreateTemp(dir, ".health-*")
		if err != nil {
			return ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("cannot write to %s: %v", dir, err),
			}
		}
		f.Close()
		os.Remove(f.Name())
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "data directories are writable",
	}
}

func statInt(stats map[string]interface{}, key string) int {
	if v, ok := stats[key].(int); ok {
		return v
	}
	return 0
}
