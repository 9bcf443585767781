package services

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/sirupsen/logrus"
)

// ResourceStats is the process-level snapshot exposed on the health
// endpoint.
type ResourceStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	Goroutines    int     `json:"goroutines"`
	UptimeSeconds int64   `json:"uptime_seconds"`
}

// PerformanceMonitor samples host resource usage for observability.
type PerformanceMonitor struct {
	logger  *logrus.Logger
	started time.Time
}

// NewPerformanceMonitor creates a monitor anchored at process start.
func NewPerformanceMonitor(logger *logrus.Logger) *PerformanceMonitor {
	return &PerformanceMonitor{
		logger:  logger,
		started: time.Now(),
	}
}

// Stats samples CPU and memory. Sampling failures degrade to zeroed
// fields rather than failing the health check.
func (pm *PerformanceMonitor) Stats(ctx context.Context) *ResourceStats {
	stats := &ResourceStats{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(pm.started).Seconds()),
	}

	if cpuPercent, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUPercent = cpuPercent[0]
	} else if err != nil {
		pm.logger.WithFields(logrus.Fields{"error": err.Error()}).Debug("CPU sampling failed")
	}

	if memInfo, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryPercent = memInfo.UsedPercent
		stats.MemoryUsedMB = memInfo.Used / 1024 / 1024
	} else {
		pm.logger.WithFields(logrus.Fields{"error": err.Error()}).Debug("Memory sampling failed")
	}

	return stats
}
