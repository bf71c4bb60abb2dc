package main

import (
	"sync/atomic"
	"testing"
	"time"
)

func newTestScheduler() (*StreamScheduler, *Metrics) {
	config := DefaultConfig()
	config.FrameWidth = 160
	config.FrameHeight = 120
	config.FrameInterval = 10 * time.Millisecond

	metrics := NewMetrics()
	state := NewVehicleState()
	synth := NewFrameSynthesizer(config, metrics)
	return NewStreamScheduler(synth, nil, state, config, metrics), metrics
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestStreamStartAndStop(t *testing.T) {
	scheduler, metrics := newTestScheduler()
	sess, conn := newTestSession("v1", RoleVideo)

	if !scheduler.Start(sess) {
		t.Fatal("Start returned false for an idle session")
	}
	if scheduler.Start(sess) {
		t.Fatal("Start returned true for an already streaming session")
	}

	waitFor(t, 2*time.Second, func() bool { return conn.count() > 0 },
		"no frame pushed within the scheduling window")

	scheduler.Stop(sess)
	pushed := conn.count()

	// stop is signal + join: once Stop returns, no further ticks may run
	time.Sleep(50 * time.Millisecond)
	if conn.count() != pushed {
		t.Fatalf("frames pushed after Stop returned: %d -> %d", pushed, conn.count())
	}
	if n := atomic.LoadInt64(&metrics.ActiveStreams); n != 0 {
		t.Fatalf("ActiveStreams = %d after Stop, want 0", n)
	}

	// the session stays usable: streaming can start again
	if !scheduler.Start(sess) {
		t.Fatal("Start returned false after a clean Stop")
	}
	scheduler.Stop(sess)
}

func TestStreamStopIdleIsNoOp(t *testing.T) {
	scheduler, _ := newTestScheduler()
	sess, _ := newTestSession("v1", RoleVideo)

	done := make(chan struct{})
	go func() {
		scheduler.Stop(sess)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop on an idle session blocked")
	}
}

// A push failure stops the task and returns the session to idle without
// tearing the session down.
func TestStreamStopsItselfOnSendFailure(t *testing.T) {
	scheduler, metrics := newTestScheduler()
	sess, conn := newTestSession("v1", RoleVideo)

	scheduler.Start(sess)
	waitFor(t, 2*time.Second, func() bool { return conn.count() > 0 },
		"no frame pushed before inducing failure")

	conn.setFailing(true)
	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt64(&metrics.ActiveStreams) == 0
	}, "task did not stop itself after a send failure")

	if !sess.IsOpen() {
		t.Fatal("send failure tore down the session")
	}

	// a fresh start must be possible after the self-stop
	conn.setFailing(false)
	if !scheduler.Start(sess) {
		t.Fatal("Start returned false after a self-stop")
	}
	scheduler.Stop(sess)
}

// One session's failure never affects another session's cadence.
func TestStreamTasksAreIndependent(t *testing.T) {
	scheduler, _ := newTestScheduler()
	healthy, healthyConn := newTestSession("ok", RoleVideo)
	broken, brokenConn := newTestSession("broken", RoleVideo)

	scheduler.Start(healthy)
	scheduler.Start(broken)
	defer scheduler.Stop(healthy)

	waitFor(t, 2*time.Second, func() bool { return brokenConn.count() > 0 },
		"broken session never received a frame")
	brokenConn.setFailing(true)

	// the healthy stream must keep advancing after the other one dies
	base := healthyConn.count()
	waitFor(t, 2*time.Second, func() bool { return healthyConn.count() > base+3 },
		"healthy session stalled after sibling failure")
}
