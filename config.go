package main

import (
	"fmt"
	"os"
	"time"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

type Config struct {
	// Server settings
	Host       string
	APIPort    int
	EnableCORS bool

	// Video settings
	FrameWidth    int
	FrameHeight   int
	FrameInterval time.Duration
	JPEGQuality   int

	// Camera relay settings
	CameraEnabled bool
	CameraURL     string
	CameraTimeout time.Duration

	// Monitor settings
	HeartbeatInterval time.Duration
	StatusInterval    time.Duration

	// Security settings
	APIKey           string
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// Resource limits
	MaxConnections  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Host:       "0.0.0.0",
		APIPort:    8080,
		EnableCORS: true,

		FrameWidth:    640,
		FrameHeight:   480,
		FrameInterval: 66 * time.Millisecond, // ~15fps
		JPEGQuality:   75,

		CameraEnabled: false,
		CameraURL:     "rtsp://192.168.4.1:8554/stream",
		CameraTimeout: 5 * time.Second,

		HeartbeatInterval: 30 * time.Second,
		StatusInterval:    5 * time.Second,

		APIKey:           "",
		RateLimitEnabled: true,
		RateLimitRPS:     100,
		RateLimitBurst:   200,

		MaxConnections:  1000,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

func LoadConfigFromEnv(cfg *Config) {
	if v := os.Getenv("HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.APIPort)
	}
	if v := os.Getenv("FRAME_WIDTH"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.FrameWidth)
	}
	if v := os.Getenv("FRAME_HEIGHT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.FrameHeight)
	}
	if v := os.Getenv("JPEG_QUALITY"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.JPEGQuality)
	}
	if v := os.Getenv("CAMERA_ENABLED"); v != "" {
		cfg.CameraEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CAMERA_URL"); v != "" {
		cfg.CameraURL = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("RATE_LIMIT_ENABLED"); v != "" {
		cfg.RateLimitEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		fmt.Sscanf(v, "%f", &cfg.RateLimitRPS)
	}
	if v := os.Getenv("MAX_CONNECTIONS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.MaxConnections)
	}
}
