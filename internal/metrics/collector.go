package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SystemMetrics is one resource sample
type SystemMetrics struct {
	CPUPercent        float64 // System-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // can exceed 100% on multi-core
	ProcessRSSBytes   uint64
	MemoryUsedGB      float64
	MemoryTotalGB     float64
	MemoryPercent     float64
	Timestamp         time.Time
}

// Collector samples resource usage while background jobs run
type Collector struct {
	interval    time.Duration
	logger      *zap.Logger
	proc        *process.Process
	sink        *EditMetrics
	mu          sync.RWMutex
	lastMetrics *SystemMetrics
}

// NewCollector creates a collector. Samples are also published to sink when
// it is non-nil.
func NewCollector(interval time.Duration, logger *zap.Logger, sink *EditMetrics) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
		sink:     sink,
	}
}

// Start samples until ctx is cancelled
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Sample()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.Sample()
		}
	}
}

// GetMetrics returns the last sample, or nil before the first one
func (c *Collector) GetMetrics() *SystemMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastMetrics
}

// Sample takes one measurement, stores it and logs it at debug level
func (c *Collector) Sample() *SystemMetrics {
	metrics := &SystemMetrics{
		Timestamp: time.Now(),
	}

	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		metrics.CPUPercent = cpuPercent[0]
	}

	if c.proc != nil {
		if procCPU, err := c.proc.Percent(0); err == nil {
			metrics.ProcessCPUPercent = procCPU
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			metrics.ProcessRSSBytes = info.RSS
		}
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		metrics.MemoryPercent = vmem.UsedPercent
		metrics.MemoryUsedGB = float64(vmem.Used) / (1024 * 1024 * 1024)
		metrics.MemoryTotalGB = float64(vmem.Total) / (1024 * 1024 * 1024)
	}

	c.mu.Lock()
	c.lastMetrics = metrics
	c.mu.Unlock()

	if c.sink != nil {
		c.sink.observeSystem(metrics)
	}

	c.logger.Debug("System metrics",
		zap.Float64("sys_cpu", metrics.CPUPercent),
		zap.Float64("proc_cpu", metrics.ProcessCPUPercent),
		zap.String("proc_rss", formatMB(metrics.ProcessRSSBytes)),
		zap.Float64("mem_pct", metrics.MemoryPercent),
		zap.String("mem_used", fmt.Sprintf("%.1f GB", metrics.MemoryUsedGB)),
	)
	return metrics
}

func formatMB(b uint64) string {
	return fmt.Sprintf("%.1f MB", float64(b)/(1024*1024))
}
