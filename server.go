package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// RATE LIMITER & SECURITY
// =============================================================================

type RateLimiterPool struct {
	limiters sync.Map
	rps      float64
	burst    int
}

func NewRateLimiterPool(rps float64, burst int) *RateLimiterPool {
	return &RateLimiterPool{rps: rps, burst: burst}
}

func (p *RateLimiterPool) GetLimiter(key string) *rate.Limiter {
	if limiter, ok := p.limiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}
	limiter := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.limiters.Store(key, limiter)
	return limiter
}

type ConnectionTracker struct {
	connections sync.Map
	count       int64
	maxConn     int
	mu          sync.Mutex
}

func NewConnectionTracker(maxConn int) *ConnectionTracker {
	return &ConnectionTracker{maxConn: maxConn}
}

func (ct *ConnectionTracker) Add(id string) bool {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if int(ct.count) >= ct.maxConn {
		return false
	}
	ct.connections.Store(id, time.Now())
	ct.count++
	return true
}

func (ct *ConnectionTracker) Remove(id string) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	if _, ok := ct.connections.LoadAndDelete(id); ok {
		ct.count--
	}
}

func (ct *ConnectionTracker) Count() int {
	return int(atomic.LoadInt64(&ct.count))
}

// =============================================================================
// VEHICLE SERVER
// =============================================================================

type VehicleServer struct {
	config      *Config
	metrics     *Metrics
	state       *VehicleState
	registry    *SessionRegistry
	dispatcher  *BroadcastDispatcher
	processor   *CommandProcessor
	synth       *FrameSynthesizer
	camera      *CameraRelay
	scheduler   *StreamScheduler
	rateLimiter *RateLimiterPool
	connTracker *ConnectionTracker
	httpServer  *http.Server

	restStreaming int32 // MJPEG REST stream flag

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewVehicleServer(config *Config) *VehicleServer {
	ctx, cancel := context.WithCancel(context.Background())

	metrics := NewMetrics()
	state := NewVehicleState()
	registry := NewSessionRegistry()
	dispatcher := NewBroadcastDispatcher(registry, metrics)
	synth := NewFrameSynthesizer(config, metrics)
	camera := NewCameraRelay(config, metrics)

	return &VehicleServer{
		config:      config,
		metrics:     metrics,
		state:       state,
		registry:    registry,
		dispatcher:  dispatcher,
		processor:   NewCommandProcessor(state, registry, dispatcher, metrics),
		synth:       synth,
		camera:      camera,
		scheduler:   NewStreamScheduler(synth, camera, state, config, metrics),
		rateLimiter: NewRateLimiterPool(config.RateLimitRPS, config.RateLimitBurst),
		connTracker: NewConnectionTracker(config.MaxConnections),
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *VehicleServer) Start() error {
	if err := s.camera.Start(); err != nil {
		return fmt.Errorf("camera relay start failed: %v", err)
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.APIPort),
		Handler:      s.middleware(mux),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Printf("🚀 HTTP API started on port %d", s.config.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ HTTP server error: %v", err)
		}
	}()

	s.wg.Add(1)
	go s.monitorLoop()

	s.metrics.SetHealth("healthy")
	return nil
}

func (s *VehicleServer) Stop() {
	log.Println("🛑 Shutting down server...")

	s.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown error: %v", err)
	}

	// stop every streaming task before dropping the sessions
	for _, sess := range s.registry.ListByRole(RoleVideo) {
		s.scheduler.Stop(sess)
	}
	s.camera.Stop()

	s.wg.Wait()
	log.Println("✅ Server stopped gracefully")
}

// monitorLoop heartbeats to the log, drifts the simulated system readings
// and pushes periodic status broadcasts to the status listeners.
func (s *VehicleServer) monitorLoop() {
	defer s.wg.Done()

	statusTicker := time.NewTicker(s.config.StatusInterval)
	defer statusTicker.Stop()
	heartbeatTicker := time.NewTicker(s.config.HeartbeatInterval)
	defer heartbeatTicker.Stop()

	heartbeats := 0
	ticks := 0

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-heartbeatTicker.C:
			heartbeats++
			log.Printf("💓 Heartbeat #%d - %d control, %d status, %d video sessions, %.1fMB in use",
				heartbeats,
				s.registry.Count(RoleControl),
				s.registry.Count(RoleStatus),
				s.registry.Count(RoleVideo),
				getMemoryUsageMB())
			s.metrics.SetHealth("healthy")
		case <-statusTicker.C:
			ticks++
			s.driftSystemReadings(ticks)
			status := s.state.Snapshot()
			s.dispatcher.Broadcast(RoleStatus, statusMessage(status, "STATUS_BROADCAST", map[string]interface{}{
				"activeListeners": s.registry.Count(RoleStatus),
			}))
		}
	}
}

// driftSystemReadings nudges the simulated system fields so a vehicle with
// no hardware attached still reports a living system.
func (s *VehicleServer) driftSystemReadings(tick int) {
	status := s.state.Snapshot()

	battery := status.BatteryLevel
	if tick%12 == 0 && battery > 0 { // ~1% per minute at the 5s default
		battery--
	}
	cpuTemp := 25.0 + 10.0*math.Sin(float64(tick)*0.1) + float64(status.Speed)/20.0

	wifi := "strong"
	switch {
	case battery < 20:
		wifi = "weak"
	case battery < 50:
		wifi = "medium"
	}

	s.state.SetSystemData(battery, cpuTemp, wifi)
}

// =============================================================================
// MIDDLEWARE & ROUTES
// =============================================================================

func (s *VehicleServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS
		if s.config.EnableCORS {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
		}

		// API Key authentication
		if s.config.APIKey != "" {
			apiKey := r.Header.Get("X-API-Key")
			if apiKey == "" {
				apiKey = r.URL.Query().Get("api_key")
			}
			if !strings.HasPrefix(r.URL.Path, "/health") && !strings.HasPrefix(r.URL.Path, "/metrics") {
				if apiKey != s.config.APIKey {
					http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
					return
				}
			}
		}

		// Rate limiting
		if s.config.RateLimitEnabled {
			ip := getClientIP(r)
			limiter := s.rateLimiter.GetLimiter(ip)
			if !limiter.Allow() {
				atomic.AddInt64(&s.metrics.RejectedConnections, 1)
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
		}

		// Connection tracking
		connID := fmt.Sprintf("%s-%d", getClientIP(r), time.Now().UnixNano())
		if !s.connTracker.Add(connID) {
			atomic.AddInt64(&s.metrics.RejectedConnections, 1)
			http.Error(w, `{"error":"max connections exceeded"}`, http.StatusServiceUnavailable)
			return
		}
		defer s.connTracker.Remove(connID)

		next.ServeHTTP(w, r)
	})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.Split(xff, ",")[0]
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return strings.Split(r.RemoteAddr, ":")[0]
}

func (s *VehicleServer) registerRoutes(mux *http.ServeMux) {
	// Health & Metrics
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/", s.handleIndex)

	// WebSocket channels
	mux.HandleFunc("/ws/control", s.handleControlWS)
	mux.HandleFunc("/ws/status", s.handleStatusWS)
	mux.HandleFunc("/ws/video", s.handleVideoWS)

	// Vehicle REST endpoints
	mux.HandleFunc("/api/car/status", s.handleCarStatus)
	mux.HandleFunc("/api/car/control", s.handleCarControl)
	mux.HandleFunc("/api/car/emergency-stop", s.handleEmergencyStop)
	mux.HandleFunc("/api/car/connection-status", s.handleConnectionStatus)

	// Video REST endpoints
	mux.HandleFunc("/api/video/frame", s.handleVideoFrame)
	mux.HandleFunc("/api/video/frame/base64", s.handleVideoFrameBase64)
	mux.HandleFunc("/api/video/frame/sensor", s.handleVideoFrameSensor)
	mux.HandleFunc("/api/video/stream", s.handleVideoStream)
	mux.HandleFunc("/api/video/stop", s.handleVideoStop)
	mux.HandleFunc("/api/video/status", s.handleVideoStatus)
	mux.HandleFunc("/api/video/record/", s.handleVideoRecord)
	mux.HandleFunc("/api/video/adjust", s.handleVideoAdjust)
}

// =============================================================================
// HTTP HANDLERS - HEALTH & METRICS
// =============================================================================

func (s *VehicleServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := map[string]interface{}{
		"status":  s.metrics.GetHealth(),
		"version": "1.2.0",
		"uptime":  time.Since(s.metrics.StartTime).String(),
		"sessions": map[string]interface{}{
			"control": s.registry.Count(RoleControl),
			"status":  s.registry.Count(RoleStatus),
			"video":   s.registry.Count(RoleVideo),
		},
		"modules": map[string]interface{}{
			"camera": map[string]interface{}{
				"enabled": s.config.CameraEnabled,
				"is_live": s.camera.IsLive(),
			},
			"video": map[string]interface{}{
				"frame_count":    s.synth.FrameCount(),
				"active_streams": atomic.LoadInt64(&s.metrics.ActiveStreams),
				"recording":      s.synth.IsRecording(),
			},
		},
		"connections": map[string]interface{}{
			"active": atomic.LoadInt64(&s.metrics.ActiveConnections),
			"max":    s.config.MaxConnections,
		},
	}

	json.NewEncoder(w).Encode(health)
}

func (s *VehicleServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.metrics.GetSnapshot())
}
