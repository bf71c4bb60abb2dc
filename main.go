package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// =============================================================================
// MAIN
// =============================================================================

func main() {
	config := DefaultConfig()

	// Parse command line flags
	flag.IntVar(&config.APIPort, "port", config.APIPort, "HTTP API port")
	flag.IntVar(&config.FrameWidth, "frame-width", config.FrameWidth, "Synthesized frame width")
	flag.IntVar(&config.FrameHeight, "frame-height", config.FrameHeight, "Synthesized frame height")
	flag.IntVar(&config.JPEGQuality, "jpeg-quality", config.JPEGQuality, "JPEG encoding quality")
	flag.DurationVar(&config.FrameInterval, "frame-interval", config.FrameInterval, "Video frame push interval")
	flag.BoolVar(&config.CameraEnabled, "camera", config.CameraEnabled, "Enable physical camera relay")
	flag.StringVar(&config.CameraURL, "camera-url", config.CameraURL, "RTSP URL of the physical camera")
	flag.StringVar(&config.APIKey, "api-key", config.APIKey, "API key for authentication")
	flag.BoolVar(&config.RateLimitEnabled, "rate-limit", config.RateLimitEnabled, "Enable rate limiting")
	flag.Float64Var(&config.RateLimitRPS, "rate-limit-rps", config.RateLimitRPS, "Rate limit requests per second")
	flag.IntVar(&config.MaxConnections, "max-conn", config.MaxConnections, "Maximum concurrent connections")
	flag.DurationVar(&config.StatusInterval, "status-interval", config.StatusInterval, "Status broadcast interval")
	flag.Parse()

	// Load from environment
	LoadConfigFromEnv(config)

	if config.FrameInterval <= 0 {
		config.FrameInterval = 66 * time.Millisecond
	}

	// Print banner
	printBanner(config)

	// Create and start server
	server := NewVehicleServer(config)

	if err := server.Start(); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	server.Stop()
}
