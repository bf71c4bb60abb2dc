package main

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// VEHICLE STATE
// =============================================================================

const (
	DirectionForward  = "FORWARD"
	DirectionBackward = "BACKWARD"
	DirectionLeft     = "LEFT"
	DirectionRight    = "RIGHT"
	DirectionStop     = "STOP"
)

const statusTimeFormat = "2006-01-02 15:04:05"

// VehicleStatus is one consistent snapshot of the vehicle. It is a plain
// value: safe to serialize while the live state keeps mutating.
type VehicleStatus struct {
	Speed         int     `json:"speed"`
	Direction     string  `json:"direction"`
	IsMoving      bool    `json:"isMoving"`
	FrontDistance int     `json:"frontDistance"`
	LeftDistance  int     `json:"leftDistance"`
	RightDistance int     `json:"rightDistance"`
	BatteryLevel  int     `json:"batteryLevel"`
	CPUTemp       float64 `json:"cpuTemperature"`
	WifiSignal    string  `json:"wifiSignal"`
	Timestamp     string  `json:"timestamp"`
}

func (s VehicleStatus) toMap() map[string]interface{} {
	return map[string]interface{}{
		"speed":          s.Speed,
		"direction":      s.Direction,
		"isMoving":       s.IsMoving,
		"frontDistance":  s.FrontDistance,
		"leftDistance":   s.LeftDistance,
		"rightDistance":  s.RightDistance,
		"batteryLevel":   s.BatteryLevel,
		"cpuTemperature": s.CPUTemp,
		"wifiSignal":     s.WifiSignal,
		"timestamp":      s.Timestamp,
	}
}

// VehicleState is the single live record of the vehicle, shared by every
// connection. All mutation goes through ApplyCommand or the setters below,
// under one lock; Snapshot never exposes a torn update.
type VehicleState struct {
	mu     sync.RWMutex
	status VehicleStatus
}

func NewVehicleState() *VehicleState {
	return &VehicleState{
		status: VehicleStatus{
			Speed:        0,
			Direction:    DirectionStop,
			IsMoving:     false,
			BatteryLevel: 100,
			CPUTemp:      25.0,
			WifiSignal:   "strong",
			Timestamp:    time.Now().Format(statusTimeFormat),
		},
	}
}

// ApplyCommand mutates the state according to the command table. The command
// is assumed valid; a SPEED command with a missing or non-numeric value
// leaves the speed untouched.
func (v *VehicleState) ApplyCommand(cmd *ControlCommand) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch strings.ToUpper(cmd.Command) {
	case CommandForward:
		v.status.Direction = DirectionForward
		v.setSpeedLocked(50)
	case CommandBackward:
		v.status.Direction = DirectionBackward
		v.setSpeedLocked(30)
	case CommandLeft:
		v.status.Direction = DirectionLeft
	case CommandRight:
		v.status.Direction = DirectionRight
	case CommandStop, CommandEmergencyStop:
		v.status.Direction = DirectionStop
		v.setSpeedLocked(0)
	case CommandSpeed:
		if cmd.Value != "" {
			if speed, err := strconv.Atoi(cmd.Value); err == nil {
				v.setSpeedLocked(speed)
			}
		}
	}
	v.status.Timestamp = time.Now().Format(statusTimeFormat)
}

// setSpeedLocked keeps isMoving derived from speed. Callers hold v.mu.
func (v *VehicleState) setSpeedLocked(speed int) {
	v.status.Speed = speed
	v.status.IsMoving = speed > 0
}

func (v *VehicleState) Snapshot() VehicleStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.status
}

// SetSensorData updates the distance readings reported by the vehicle.
func (v *VehicleState) SetSensorData(front, left, right int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status.FrontDistance = front
	v.status.LeftDistance = left
	v.status.RightDistance = right
	v.status.Timestamp = time.Now().Format(statusTimeFormat)
}

// SetSystemData updates the simulated system readings (monitor loop).
func (v *VehicleState) SetSystemData(battery int, cpuTemp float64, wifi string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if battery < 0 {
		battery = 0
	}
	v.status.BatteryLevel = battery
	v.status.CPUTemp = cpuTemp
	v.status.WifiSignal = wifi
	v.status.Timestamp = time.Now().Format(statusTimeFormat)
}

// =============================================================================
// CONTROL COMMAND
// =============================================================================

const (
	CommandForward       = "FORWARD"
	CommandBackward      = "BACKWARD"
	CommandLeft          = "LEFT"
	CommandRight         = "RIGHT"
	CommandStop          = "STOP"
	CommandSpeed         = "SPEED"
	CommandEmergencyStop = "EMERGENCY_STOP"
)

// ControlCommand is one inbound instruction, discarded after processing.
type ControlCommand struct {
	Command   string `json:"command"`
	Value     string `json:"value,omitempty"`
	Source    string `json:"source,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ApplyDefaults fills the fields the sender may omit.
func (c *ControlCommand) ApplyDefaults() {
	if c.Source == "" {
		c.Source = "WEB"
	}
	if c.Timestamp == 0 {
		c.Timestamp = time.Now().UnixMilli()
	}
}

// IsValid reports whether the command names one of the seven recognized
// operations, case-insensitively.
func (c *ControlCommand) IsValid() bool {
	if c == nil || strings.TrimSpace(c.Command) == "" {
		return false
	}
	switch strings.ToUpper(c.Command) {
	case CommandForward, CommandBackward, CommandLeft, CommandRight,
		CommandStop, CommandSpeed, CommandEmergencyStop:
		return true
	}
	return false
}
