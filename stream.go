package main

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// =============================================================================
// STREAM SCHEDULER
// =============================================================================

// streamTask is the handle for one session's periodic frame push. Stopping
// is cooperative: close(stop) signals the loop, done is closed when the last
// tick has finished.
type streamTask struct {
	stop chan struct{}
	done chan struct{}
}

// StreamScheduler runs one independent periodic task per streaming video
// session. Each tick pulls a frame and pushes it to exactly the owning
// session; a slow or broken recipient only ever affects its own task.
type StreamScheduler struct {
	synth    *FrameSynthesizer
	camera   *CameraRelay // nil when no physical camera is configured
	state    *VehicleState
	interval time.Duration
	metrics  *Metrics

	mu sync.Mutex // serializes start/stop transitions across sessions
}

func NewStreamScheduler(synth *FrameSynthesizer, camera *CameraRelay, state *VehicleState, config *Config, metrics *Metrics) *StreamScheduler {
	return &StreamScheduler{
		synth:    synth,
		camera:   camera,
		state:    state,
		interval: config.FrameInterval,
		metrics:  metrics,
	}
}

// Start transitions the session to STREAMING. Starting an already streaming
// session is a no-op.
func (s *StreamScheduler) Start(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.stream != nil {
		return false
	}
	task := &streamTask{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	sess.stream = task
	atomic.AddInt64(&s.metrics.ActiveStreams, 1)

	go s.run(sess, task)
	return true
}

// Stop signals the session's task and waits for it to finish. After Stop
// returns no further frame is pushed; one in-flight tick may still complete
// before the join. Stopping an idle session is a no-op.
func (s *StreamScheduler) Stop(sess *Session) {
	s.mu.Lock()
	task := sess.stream
	sess.stream = nil
	s.mu.Unlock()

	if task == nil {
		return
	}
	close(task.stop)
	<-task.done
}

// stopSelf detaches a task that ended on its own (send failure, closed
// session) so a later Start can begin a fresh one.
func (s *StreamScheduler) stopSelf(sess *Session, task *streamTask) {
	s.mu.Lock()
	if sess.stream == task {
		sess.stream = nil
	}
	s.mu.Unlock()
}

func (s *StreamScheduler) run(sess *Session, task *streamTask) {
	defer close(task.done)
	defer atomic.AddInt64(&s.metrics.ActiveStreams, -1)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		// Prefer the stop signal over a pending tick so Stop wins the race.
		select {
		case <-task.stop:
			return
		default:
		}

		select {
		case <-task.stop:
			return
		case <-ticker.C:
			frame, err := s.nextFrameMessage()
			if err != nil {
				// Fatal to this frame only: skip the tick, keep streaming.
				atomic.AddInt64(&s.metrics.FramesDropped, 1)
				log.Printf("⚠️ Frame synthesis failed for session %s: %v", sess.ID, err)
				continue
			}
			if !sess.IsOpen() {
				s.stopSelf(sess, task)
				return
			}
			if err := sess.Send(frame); err != nil {
				log.Printf("⚠️ Frame push failed for session %s, stopping stream: %v", sess.ID, err)
				s.stopSelf(sess, task)
				return
			}
		}
	}
}

// nextFrameMessage picks the live camera when one is attached and relaying,
// otherwise the deterministic synthesizer. Decided per tick so a camera
// appearing or dropping mid-stream switches the feed without restarting.
func (s *StreamScheduler) nextFrameMessage() ([]byte, error) {
	if s.camera != nil && s.camera.IsLive() {
		if jpegData := s.camera.LatestFrame(); jpegData != nil {
			status := s.state.Snapshot()
			return cameraFrameMessage(jpegData, status), nil
		}
	}
	return s.synth.FrameWithSensorData()
}
