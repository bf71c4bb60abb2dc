package main

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// METRICS & MONITORING
// =============================================================================

type Metrics struct {
	// Connection metrics
	ActiveConnections   int64
	TotalConnections    int64
	FailedConnections   int64
	RejectedConnections int64

	// Command metrics
	CommandsExecuted int64
	CommandsInvalid  int64
	CommandsRejected int64
	EmergencyStops   int64

	// Broadcast metrics
	BroadcastsSent    int64
	MessagesDelivered int64
	DeliveriesFailed  int64

	// Video metrics
	FramesGenerated int64
	FramesEncodeErr int64
	FramesDropped   int64
	ActiveStreams   int64

	// Camera metrics
	CameraPackets int64
	CameraBytesIn int64
	CameraFrames  int64
	CameraErrors  int64

	// System metrics
	StartTime       time.Time
	LastHealthCheck time.Time
	HealthStatus    string

	mu sync.RWMutex
}

func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:    time.Now(),
		HealthStatus: "starting",
	}
}

func (m *Metrics) IncrementConnections() {
	atomic.AddInt64(&m.ActiveConnections, 1)
	atomic.AddInt64(&m.TotalConnections, 1)
}

func (m *Metrics) DecrementConnections() {
	atomic.AddInt64(&m.ActiveConnections, -1)
}

func (m *Metrics) SetHealth(status string) {
	m.mu.Lock()
	m.HealthStatus = status
	m.LastHealthCheck = time.Now()
	m.mu.Unlock()
}

func (m *Metrics) GetHealth() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.HealthStatus
}

func (m *Metrics) GetSnapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"connections": map[string]int64{
			"active":   atomic.LoadInt64(&m.ActiveConnections),
			"total":    atomic.LoadInt64(&m.TotalConnections),
			"failed":   atomic.LoadInt64(&m.FailedConnections),
			"rejected": atomic.LoadInt64(&m.RejectedConnections),
		},
		"commands": map[string]int64{
			"executed":        atomic.LoadInt64(&m.CommandsExecuted),
			"invalid":         atomic.LoadInt64(&m.CommandsInvalid),
			"rejected":        atomic.LoadInt64(&m.CommandsRejected),
			"emergency_stops": atomic.LoadInt64(&m.EmergencyStops),
		},
		"broadcast": map[string]int64{
			"broadcasts":         atomic.LoadInt64(&m.BroadcastsSent),
			"messages_delivered": atomic.LoadInt64(&m.MessagesDelivered),
			"deliveries_failed":  atomic.LoadInt64(&m.DeliveriesFailed),
		},
		"video": map[string]int64{
			"frames_generated": atomic.LoadInt64(&m.FramesGenerated),
			"encode_errors":    atomic.LoadInt64(&m.FramesEncodeErr),
			"frames_dropped":   atomic.LoadInt64(&m.FramesDropped),
			"active_streams":   atomic.LoadInt64(&m.ActiveStreams),
		},
		"camera": map[string]int64{
			"packets":  atomic.LoadInt64(&m.CameraPackets),
			"bytes_in": atomic.LoadInt64(&m.CameraBytesIn),
			"frames":   atomic.LoadInt64(&m.CameraFrames),
			"errors":   atomic.LoadInt64(&m.CameraErrors),
		},
		"system": map[string]interface{}{
			"uptime_seconds":    time.Since(m.StartTime).Seconds(),
			"health_status":     m.HealthStatus,
			"last_health_check": m.LastHealthCheck.Format(time.RFC3339),
			"goroutines":        runtime.NumGoroutine(),
			"memory_mb":         getMemoryUsageMB(),
		},
	}
}

func getMemoryUsageMB() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return float64(ms.Alloc) / 1024 / 1024
}
