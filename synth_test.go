package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/jpeg"
	"math"
	"sync"
	"testing"
)

func newTestSynthesizer() *FrameSynthesizer {
	config := DefaultConfig()
	config.FrameWidth = 160
	config.FrameHeight = 120
	return NewFrameSynthesizer(config, NewMetrics())
}

// A fresh counter yields frontDistance = 100 - (i mod 100) for i = 0..N-1.
func TestSensorSequenceIsDeterministic(t *testing.T) {
	synth := newTestSynthesizer()

	const n = 250
	for i := 0; i < n; i++ {
		rec, err := synth.NextFrame(160, 120)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if rec.FrameIndex != int64(i) {
			t.Fatalf("frame index = %d, want %d", rec.FrameIndex, i)
		}
		wantFront := float64(100 - i%100)
		if rec.FrontDistance != wantFront {
			t.Fatalf("frame %d: frontDistance = %v, want %v", i, rec.FrontDistance, wantFront)
		}
		wantLeft := 50 + 20*math.Sin(float64(i)*0.05)
		if math.Abs(rec.LeftDistance-wantLeft) > 1e-9 {
			t.Fatalf("frame %d: leftDistance = %v, want %v", i, rec.LeftDistance, wantLeft)
		}
		wantRight := 50 + 20*math.Cos(float64(i)*0.05)
		if math.Abs(rec.RightDistance-wantRight) > 1e-9 {
			t.Fatalf("frame %d: rightDistance = %v, want %v", i, rec.RightDistance, wantRight)
		}
	}

	if synth.FrameCount() != n {
		t.Errorf("FrameCount = %d, want %d", synth.FrameCount(), n)
	}
}

func TestFrameEncodesToJPEG(t *testing.T) {
	synth := newTestSynthesizer()

	rec, err := synth.NextFrame(160, 120)
	if err != nil {
		t.Fatalf("NextFrame: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(rec.Image))
	if err != nil {
		t.Fatalf("frame is not valid JPEG: %v", err)
	}
	if cfg.Width != 160 || cfg.Height != 120 {
		t.Errorf("frame dimensions = %dx%d, want 160x120", cfg.Width, cfg.Height)
	}
}

// All concurrent consumers draw from one shared sequence: no index is ever
// produced twice and the counter advances once per call.
func TestFrameCounterSharedAcrossConsumers(t *testing.T) {
	synth := newTestSynthesizer()

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup

	const workers, perWorker = 4, 25
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				rec, err := synth.NextFrame(160, 120)
				if err != nil {
					t.Errorf("NextFrame: %v", err)
					return
				}
				mu.Lock()
				if seen[rec.FrameIndex] {
					t.Errorf("frame index %d produced twice", rec.FrameIndex)
				}
				seen[rec.FrameIndex] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if synth.FrameCount() != workers*perWorker {
		t.Errorf("FrameCount = %d, want %d", synth.FrameCount(), workers*perWorker)
	}
}

// The recording flag only changes the overlay, never the numeric output.
func TestRecordingFlagDoesNotAffectSensors(t *testing.T) {
	plain := newTestSynthesizer()
	recording := newTestSynthesizer()
	recording.StartRecording()

	if !recording.IsRecording() {
		t.Fatal("IsRecording = false after StartRecording")
	}

	for i := 0; i < 10; i++ {
		a, err := plain.NextFrame(160, 120)
		if err != nil {
			t.Fatal(err)
		}
		b, err := recording.NextFrame(160, 120)
		if err != nil {
			t.Fatal(err)
		}
		if a.FrontDistance != b.FrontDistance ||
			a.LeftDistance != b.LeftDistance ||
			a.RightDistance != b.RightDistance {
			t.Fatalf("frame %d: sensor output differs with recording flag", i)
		}
	}

	recording.StopRecording()
	if recording.IsRecording() {
		t.Fatal("IsRecording = true after StopRecording")
	}
}

func TestFrameWithSensorData(t *testing.T) {
	synth := newTestSynthesizer()

	msg, err := synth.FrameWithSensorData()
	if err != nil {
		t.Fatalf("FrameWithSensorData: %v", err)
	}

	var payload struct {
		Type    string `json:"type"`
		Frame   string `json:"frame"`
		Sensors struct {
			Left  float64 `json:"left"`
			Right float64 `json:"right"`
			Front float64 `json:"front"`
		} `json:"sensors"`
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		t.Fatalf("message is not valid JSON: %v", err)
	}
	if payload.Type != "video_frame" {
		t.Errorf("type = %q, want video_frame", payload.Type)
	}
	if payload.Sensors.Front != 100 {
		t.Errorf("first frame front = %v, want 100", payload.Sensors.Front)
	}

	raw, err := base64.StdEncoding.DecodeString(payload.Frame)
	if err != nil {
		t.Fatalf("frame is not valid base64: %v", err)
	}
	if _, err := jpeg.DecodeConfig(bytes.NewReader(raw)); err != nil {
		t.Fatalf("decoded frame is not JPEG: %v", err)
	}
}

func TestBase64FrameDataURL(t *testing.T) {
	synth := newTestSynthesizer()
	frame, err := synth.Base64Frame(160, 120)
	if err != nil {
		t.Fatalf("Base64Frame: %v", err)
	}
	const prefix = "data:image/jpeg;base64,"
	if len(frame) <= len(prefix) || frame[:len(prefix)] != prefix {
		t.Fatalf("frame does not carry the data URL prefix: %.40s", frame)
	}
}
