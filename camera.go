package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bluenviron/gortsplib/v4"
	"github.com/bluenviron/gortsplib/v4/pkg/base"
	"github.com/bluenviron/gortsplib/v4/pkg/format"
	"github.com/pion/rtp"
)

// =============================================================================
// CAMERA RELAY
// =============================================================================

// cameraLiveWindow is how recent the last decoded frame must be for the
// relay to be considered the active video source.
const cameraLiveWindow = 2 * time.Second

// CameraRelay pulls M-JPEG frames from a physical camera over RTSP and keeps
// the most recent one. While it reports live, it replaces the synthesizer as
// the video source; when the camera drops, consumers fall back transparently.
type CameraRelay struct {
	config *Config

	mu        sync.RWMutex
	lastFrame []byte
	lastSeen  time.Time

	metrics *Metrics
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewCameraRelay(config *Config, metrics *Metrics) *CameraRelay {
	ctx, cancel := context.WithCancel(context.Background())
	return &CameraRelay{
		config:  config,
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (m *CameraRelay) Start() error {
	if !m.config.CameraEnabled {
		log.Println("📷 Camera relay disabled, using synthesized feed")
		return nil
	}

	m.wg.Add(1)
	go m.reconnectLoop()

	log.Printf("📷 Camera relay started (source: %s)", m.config.CameraURL)
	return nil
}

func (m *CameraRelay) Stop() {
	m.cancel()
	m.wg.Wait()
	if m.config.CameraEnabled {
		log.Println("📷 Camera relay stopped")
	}
}

// IsLive reports whether a frame arrived recently enough to serve.
func (m *CameraRelay) IsLive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFrame != nil && time.Since(m.lastSeen) < cameraLiveWindow
}

// LatestFrame returns the most recent JPEG frame, or nil before the first
// frame arrives.
func (m *CameraRelay) LatestFrame() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastFrame
}

func (m *CameraRelay) reconnectLoop() {
	defer m.wg.Done()

	for {
		if err := m.streamOnce(); err != nil {
			if m.ctx.Err() != nil {
				return
			}
			atomic.AddInt64(&m.metrics.CameraErrors, 1)
			log.Printf("⚠️ Camera relay error: %v (retrying in 5s)", err)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

// streamOnce runs one RTSP session against the camera until it fails or the
// relay shuts down.
func (m *CameraRelay) streamOnce() error {
	client := &gortsplib.Client{
		ReadTimeout:  m.config.CameraTimeout,
		WriteTimeout: m.config.CameraTimeout,
	}

	u, err := base.ParseURL(m.config.CameraURL)
	if err != nil {
		return fmt.Errorf("invalid camera URL: %v", err)
	}

	if err := client.Start(u.Scheme, u.Host); err != nil {
		return fmt.Errorf("camera connect failed: %v", err)
	}
	defer client.Close()

	desc, _, err := client.Describe(u)
	if err != nil {
		return fmt.Errorf("camera describe failed: %v", err)
	}

	var forma *format.MJPEG
	medi := desc.FindFormat(&forma)
	if medi == nil {
		return fmt.Errorf("camera stream has no M-JPEG track")
	}

	rtpDec, err := forma.CreateDecoder()
	if err != nil {
		return fmt.Errorf("M-JPEG decoder setup failed: %v", err)
	}

	if _, err := client.Setup(desc.BaseURL, medi, 0, 0); err != nil {
		return fmt.Errorf("camera setup failed: %v", err)
	}

	client.OnPacketRTP(medi, forma, func(pkt *rtp.Packet) {
		atomic.AddInt64(&m.metrics.CameraPackets, 1)
		atomic.AddInt64(&m.metrics.CameraBytesIn, int64(len(pkt.Payload)))

		frame, err := rtpDec.Decode(pkt)
		if err != nil {
			// partial frame, more packets coming
			return
		}

		atomic.AddInt64(&m.metrics.CameraFrames, 1)
		m.mu.Lock()
		m.lastFrame = frame
		m.lastSeen = time.Now()
		m.mu.Unlock()
	})

	if _, err := client.Play(nil); err != nil {
		return fmt.Errorf("camera play failed: %v", err)
	}
	log.Printf("📷 Camera relay connected to %s", m.config.CameraURL)

	// unblock Wait when the relay is asked to stop
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-m.ctx.Done():
			client.Close()
		case <-watchDone:
		}
	}()

	return client.Wait()
}

// cameraFrameMessage packages a relayed JPEG frame with the vehicle's actual
// sensor readings in the same shape the synthesizer emits.
func cameraFrameMessage(jpegData []byte, status VehicleStatus) []byte {
	b64 := base64.StdEncoding.EncodeToString(jpegData)
	msg := fmt.Sprintf(
		`{"type":"video_frame","frame":"%s","sensors":{"left":%.1f,"right":%.1f,"front":%.1f}}`,
		b64, float64(status.LeftDistance), float64(status.RightDistance), float64(status.FrontDistance),
	)
	return []byte(msg)
}
