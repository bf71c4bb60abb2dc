package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// =============================================================================
// HTTP HANDLERS - VEHICLE
// =============================================================================

func (s *VehicleServer) handleCarStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.state.Snapshot())
}

func (s *VehicleServer) handleCarControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	command := r.URL.Query().Get("command")
	value := r.URL.Query().Get("value")

	if err := s.processor.ExecuteCommand(command, value); err != nil {
		http.Error(w, fmt.Sprintf("command failed: %v", err), http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "command executed: %s", command)
}

func (s *VehicleServer) handleEmergencyStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.processor.EmergencyStop("WEB")
	log.Println("🚨 Emergency stop issued via REST")
	fmt.Fprint(w, "emergency stop issued")
}

func (s *VehicleServer) handleConnectionStatus(w http.ResponseWriter, r *http.Request) {
	if s.registry.Count(RoleControl) > 0 {
		fmt.Fprint(w, "connected")
	} else {
		fmt.Fprint(w, "disconnected")
	}
}

// =============================================================================
// HTTP HANDLERS - VIDEO
// =============================================================================

// frameJPEG serves the relayed camera frame when live, a synthesized one
// otherwise.
func (s *VehicleServer) frameJPEG(width, height int) ([]byte, error) {
	if s.camera.IsLive() {
		if frame := s.camera.LatestFrame(); frame != nil {
			return frame, nil
		}
	}
	rec, err := s.synth.NextFrame(width, height)
	if err != nil {
		return nil, err
	}
	return rec.Image, nil
}

func (s *VehicleServer) handleVideoFrame(w http.ResponseWriter, r *http.Request) {
	frame, err := s.frameJPEG(s.config.FrameWidth, s.config.FrameHeight)
	if err != nil {
		http.Error(w, fmt.Sprintf("frame generation failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Write(frame)
}

func (s *VehicleServer) handleVideoFrameBase64(w http.ResponseWriter, r *http.Request) {
	frame, err := s.synth.Base64Frame(s.config.FrameWidth, s.config.FrameHeight)
	if err != nil {
		http.Error(w, fmt.Sprintf("frame generation failed: %v", err), http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, frame)
}

func (s *VehicleServer) handleVideoFrameSensor(w http.ResponseWriter, r *http.Request) {
	msg, err := s.synth.FrameWithSensorData()
	if err != nil {
		http.Error(w, fmt.Sprintf("frame generation failed: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(msg)
}

// handleVideoStream serves an MJPEG stream (multipart/x-mixed-replace) at
// the configured cadence until the client goes away or /api/video/stop.
func (s *VehicleServer) handleVideoStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	atomic.StoreInt32(&s.restStreaming, 1)
	defer atomic.StoreInt32(&s.restStreaming, 0)

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(s.config.FrameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if atomic.LoadInt32(&s.restStreaming) == 0 {
				fmt.Fprint(w, "\r\n--frame--\r\n")
				flusher.Flush()
				return
			}
			frame, err := s.frameJPEG(s.config.FrameWidth, s.config.FrameHeight)
			if err != nil {
				log.Printf("⚠️ MJPEG frame generation failed: %v", err)
				continue
			}
			fmt.Fprint(w, "\r\n--frame\r\nContent-Type: image/jpeg\r\n\r\n")
			w.Write(frame)
			flusher.Flush()
		}
	}
}

func (s *VehicleServer) handleVideoStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	atomic.StoreInt32(&s.restStreaming, 0)
	fmt.Fprint(w, "video stream stopped")
}

func (s *VehicleServer) handleVideoStatus(w http.ResponseWriter, r *http.Request) {
	streaming := atomic.LoadInt32(&s.restStreaming) == 1
	status := "INACTIVE"
	if streaming {
		status = "ACTIVE"
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"isStreaming": streaming,
		"frameCount":  s.synth.FrameCount(),
		"timestamp":   time.Now().UnixMilli(),
		"status":      status,
	})
}

// handleVideoRecord routes /api/video/record/{start|stop|status}.
func (s *VehicleServer) handleVideoRecord(w http.ResponseWriter, r *http.Request) {
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/video/record/"), "/")

	if action == "status" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"isRecording": s.synth.IsRecording(),
			"timestamp":   time.Now().UnixMilli(),
		})
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch strings.ToLower(action) {
	case "start":
		s.synth.StartRecording()
		fmt.Fprint(w, "recording started")
	case "stop":
		s.synth.StopRecording()
		fmt.Fprint(w, "recording stopped")
	default:
		http.Error(w, fmt.Sprintf("invalid action: %s", action), http.StatusBadRequest)
	}
}

func (s *VehicleServer) handleVideoAdjust(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fps := 15
	width := s.config.FrameWidth
	height := s.config.FrameHeight
	if v := r.URL.Query().Get("fps"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			fps = n
		}
	}
	if v := r.URL.Query().Get("width"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			width = n
		}
	}
	if v := r.URL.Query().Get("height"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			height = n
		}
	}

	fmt.Fprintf(w, "video parameters adjusted: %dx%d @ %dfps", width, height, fps)
}
