package main

import (
	"sync"
	"testing"
)

func TestApplyCommandEffects(t *testing.T) {
	tests := []struct {
		command   string
		wantDir   string
		wantSpeed int
	}{
		{"FORWARD", DirectionForward, 50},
		{"BACKWARD", DirectionBackward, 30},
		{"STOP", DirectionStop, 0},
		{"forward", DirectionForward, 50}, // case-insensitive
		{"Backward", DirectionBackward, 30},
	}

	for _, tt := range tests {
		state := NewVehicleState()
		state.ApplyCommand(&ControlCommand{Command: tt.command})

		got := state.Snapshot()
		if got.Direction != tt.wantDir {
			t.Errorf("%s: direction = %s, want %s", tt.command, got.Direction, tt.wantDir)
		}
		if got.Speed != tt.wantSpeed {
			t.Errorf("%s: speed = %d, want %d", tt.command, got.Speed, tt.wantSpeed)
		}
		if got.IsMoving != (got.Speed > 0) {
			t.Errorf("%s: isMoving = %v with speed %d", tt.command, got.IsMoving, got.Speed)
		}
	}
}

func TestTurnCommandsKeepSpeed(t *testing.T) {
	state := NewVehicleState()
	state.ApplyCommand(&ControlCommand{Command: "FORWARD"})

	state.ApplyCommand(&ControlCommand{Command: "LEFT"})
	if got := state.Snapshot(); got.Direction != DirectionLeft || got.Speed != 50 {
		t.Errorf("LEFT: got (%s, %d), want (LEFT, 50)", got.Direction, got.Speed)
	}

	state.ApplyCommand(&ControlCommand{Command: "RIGHT"})
	if got := state.Snapshot(); got.Direction != DirectionRight || got.Speed != 50 {
		t.Errorf("RIGHT: got (%s, %d), want (RIGHT, 50)", got.Direction, got.Speed)
	}
}

func TestSpeedCommand(t *testing.T) {
	state := NewVehicleState()
	state.ApplyCommand(&ControlCommand{Command: "FORWARD"})

	state.ApplyCommand(&ControlCommand{Command: "SPEED", Value: "75"})
	got := state.Snapshot()
	if got.Speed != 75 {
		t.Errorf("SPEED 75: speed = %d, want 75", got.Speed)
	}
	if got.Direction != DirectionForward {
		t.Errorf("SPEED 75: direction changed to %s", got.Direction)
	}
	if !got.IsMoving {
		t.Error("SPEED 75: isMoving = false")
	}
}

// A SPEED command with a missing or non-numeric value leaves the state
// unchanged. Intentional: the validator accepts SPEED unconditionally, the
// apply step just skips the assignment.
func TestSpeedCommandWithoutValueIsNoOp(t *testing.T) {
	for _, value := range []string{"", "fast", "12.5"} {
		state := NewVehicleState()
		state.ApplyCommand(&ControlCommand{Command: "FORWARD"})
		state.ApplyCommand(&ControlCommand{Command: "SPEED", Value: value})

		got := state.Snapshot()
		if got.Speed != 50 || got.Direction != DirectionForward {
			t.Errorf("SPEED %q: got (%s, %d), want (FORWARD, 50)", value, got.Direction, got.Speed)
		}
	}
}

func TestEmergencyStopEffect(t *testing.T) {
	state := NewVehicleState()
	state.ApplyCommand(&ControlCommand{Command: "FORWARD"})
	state.ApplyCommand(&ControlCommand{Command: "EMERGENCY_STOP"})

	got := state.Snapshot()
	if got.Speed != 0 || got.Direction != DirectionStop {
		t.Errorf("EMERGENCY_STOP: got (%s, %d), want (STOP, 0)", got.Direction, got.Speed)
	}
	if got.IsMoving {
		t.Error("EMERGENCY_STOP: isMoving = true")
	}
}

func TestCommandIsValid(t *testing.T) {
	valid := []string{
		"FORWARD", "BACKWARD", "LEFT", "RIGHT", "STOP", "SPEED", "EMERGENCY_STOP",
		"forward", "Stop", "emergency_stop", "sPeEd",
	}
	for _, cmd := range valid {
		c := &ControlCommand{Command: cmd}
		if !c.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", cmd)
		}
	}

	invalid := []string{"", " ", "FLY", "FORWARDS", "GET_STATUS", "STOP NOW"}
	for _, cmd := range invalid {
		c := &ControlCommand{Command: cmd}
		if c.IsValid() {
			t.Errorf("IsValid(%q) = true, want false", cmd)
		}
	}

	var nilCmd *ControlCommand
	if nilCmd.IsValid() {
		t.Error("IsValid on nil command = true, want false")
	}
}

func TestCommandDefaults(t *testing.T) {
	cmd := &ControlCommand{Command: "STOP"}
	cmd.ApplyDefaults()
	if cmd.Source != "WEB" {
		t.Errorf("default source = %s, want WEB", cmd.Source)
	}
	if cmd.Timestamp == 0 {
		t.Error("default timestamp not stamped")
	}

	cmd = &ControlCommand{Command: "STOP", Source: "MOBILE", Timestamp: 42}
	cmd.ApplyDefaults()
	if cmd.Source != "MOBILE" || cmd.Timestamp != 42 {
		t.Error("ApplyDefaults overwrote caller-provided fields")
	}
}

// Snapshots taken concurrently with writes must never observe a torn update:
// isMoving always matches speed within one snapshot.
func TestSnapshotConsistencyUnderConcurrentWrites(t *testing.T) {
	state := NewVehicleState()
	commands := []string{"FORWARD", "STOP", "BACKWARD", "SPEED", "EMERGENCY_STOP"}

	var wg sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				state.ApplyCommand(&ControlCommand{
					Command: commands[(n+j)%len(commands)],
					Value:   "60",
				})
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(done)
	}()

	for {
		select {
		case <-done:
			return
		default:
			got := state.Snapshot()
			if got.IsMoving != (got.Speed > 0) {
				t.Fatalf("torn snapshot: isMoving=%v speed=%d", got.IsMoving, got.Speed)
			}
		}
	}
}
