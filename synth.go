package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// =============================================================================
// FRAME SYNTHESIZER
// =============================================================================

const obstacleBlockSize = 40

// FrameRecord is one synthesized frame plus the simulated sensor readings
// derived from the same frame index. Consumed once by the pushing scheduler.
type FrameRecord struct {
	FrameIndex    int64
	Image         []byte // JPEG
	FrontDistance float64
	LeftDistance  float64
	RightDistance float64
}

// FrameSynthesizer produces a deterministic pseudo-video feed from a single
// monotonic counter. The counter is shared across all consumers: concurrent
// streams observe one advancing sequence, not independent ones.
type FrameSynthesizer struct {
	mu         sync.Mutex
	frameIndex int64

	recording int32 // atomic flag, only affects the overlay marker

	width   int
	height  int
	quality int
	metrics *Metrics
}

func NewFrameSynthesizer(config *Config, metrics *Metrics) *FrameSynthesizer {
	return &FrameSynthesizer{
		width:   config.FrameWidth,
		height:  config.FrameHeight,
		quality: config.JPEGQuality,
		metrics: metrics,
	}
}

// NextFrame renders the frame for the next index and advances the counter by
// exactly one. An encoding failure is fatal to this call only.
func (f *FrameSynthesizer) NextFrame(width, height int) (*FrameRecord, error) {
	f.mu.Lock()
	idx := f.frameIndex
	f.frameIndex++
	f.mu.Unlock()

	img := f.renderFrame(idx, width, height)
	encoded, err := encodeFrameJPEG(img, f.quality)
	if err != nil {
		atomic.AddInt64(&f.metrics.FramesEncodeErr, 1)
		return nil, fmt.Errorf("frame %d synthesis failed: %v", idx, err)
	}
	atomic.AddInt64(&f.metrics.FramesGenerated, 1)

	return &FrameRecord{
		FrameIndex:    idx,
		Image:         encoded,
		FrontDistance: float64(100 - idx%100),
		LeftDistance:  50 + 20*math.Sin(float64(idx)*0.05),
		RightDistance: 50 + 20*math.Cos(float64(idx)*0.05),
	}, nil
}

// FrameWithSensorData renders the next frame at the configured size and
// packages it as a video_frame message for the stream scheduler.
func (f *FrameSynthesizer) FrameWithSensorData() ([]byte, error) {
	rec, err := f.NextFrame(f.width, f.height)
	if err != nil {
		return nil, err
	}
	b64 := base64.StdEncoding.EncodeToString(rec.Image)
	msg := fmt.Sprintf(
		`{"type":"video_frame","frame":"%s","sensors":{"left":%.1f,"right":%.1f,"front":%.1f}}`,
		b64, rec.LeftDistance, rec.RightDistance, rec.FrontDistance,
	)
	return []byte(msg), nil
}

// Base64Frame renders the next frame as a data URL for the REST layer.
func (f *FrameSynthesizer) Base64Frame(width, height int) (string, error) {
	rec, err := f.NextFrame(width, height)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(rec.Image), nil
}

func (f *FrameSynthesizer) FrameCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frameIndex
}

func (f *FrameSynthesizer) StartRecording() {
	atomic.StoreInt32(&f.recording, 1)
}

func (f *FrameSynthesizer) StopRecording() {
	atomic.StoreInt32(&f.recording, 0)
}

func (f *FrameSynthesizer) IsRecording() bool {
	return atomic.LoadInt32(&f.recording) == 1
}

func (f *FrameSynthesizer) renderFrame(idx int64, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// background + grid
	fillRect(img, 0, 0, width, height, color.RGBA{50, 50, 50, 255})
	gridColor := color.RGBA{100, 100, 100, 255}
	for x := 0; x < width; x += 20 {
		vertLine(img, x, 0, height, gridColor)
	}
	for y := 0; y < height; y += 20 {
		horizLine(img, 0, y, width, gridColor)
	}

	// oscillating obstacle block
	blockX := int((idx * 2) % int64(width-obstacleBlockSize))
	blockY := (height-obstacleBlockSize)/2 + int(math.Sin(float64(idx)*0.1)*50)
	fillRect(img, blockX, blockY, obstacleBlockSize, obstacleBlockSize, color.RGBA{255, 100, 100, 255})
	drawLabel(img, blockX+5, blockY+25, color.White, "OBSTACLE")

	// vehicle marker, fixed at bottom center
	carW, carH := 60, 40
	carX := width/2 - carW/2
	carY := height - carH - 20
	fillRect(img, carX, carY, carW, carH, color.RGBA{100, 200, 255, 255})
	drawLabel(img, carX+10, carY+25, color.White, "VEHICLE")

	// readouts
	green := color.RGBA{0, 255, 0, 255}
	drawLabel(img, 20, 30, green, fmt.Sprintf("front: %dcm", 100-idx%100))
	drawLabel(img, 20, 60, green, fmt.Sprintf("speed: %dcm/s", 30+idx%40))
	drawLabel(img, width-120, 30, color.White, fmt.Sprintf("frame: %d", idx))
	drawLabel(img, 20, height-20, color.RGBA{255, 255, 0, 255}, fmt.Sprintf("t: %d", time.Now().UnixMilli()))

	// recording overlay
	if f.IsRecording() {
		fillCircle(img, width-35, 15, 5, color.RGBA{255, 0, 0, 255})
		drawLabel(img, width-80, 20, color.White, "REC")
	}

	return img
}

// =============================================================================
// RASTER HELPERS & IMAGE CODEC BOUNDARY
// =============================================================================

// encodeFrameJPEG is the boundary to the image codec: raw raster in, encoded
// bytes out.
func encodeFrameJPEG(img *image.RGBA, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fillRect(img *image.RGBA, x, y, w, h int, c color.Color) {
	bounds := img.Bounds()
	for py := y; py < y+h; py++ {
		if py < bounds.Min.Y || py >= bounds.Max.Y {
			continue
		}
		for px := x; px < x+w; px++ {
			if px < bounds.Min.X || px >= bounds.Max.X {
				continue
			}
			img.Set(px, py, c)
		}
	}
}

func vertLine(img *image.RGBA, x, y0, y1 int, c color.Color) {
	for y := y0; y < y1; y++ {
		img.Set(x, y, c)
	}
}

func horizLine(img *image.RGBA, x0, y, x1 int, c color.Color) {
	for x := x0; x < x1; x++ {
		img.Set(x, y, c)
	}
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.Color) {
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				img.Set(cx+dx, cy+dy, c)
			}
		}
	}
}

func drawLabel(img *image.RGBA, x, y int, c color.Color, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
