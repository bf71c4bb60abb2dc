package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// =============================================================================
// COMMAND PROCESSOR
// =============================================================================

// getStatusSentinel is the one plain-text payload the control channel
// accepts; everything else must be a JSON control command.
const getStatusSentinel = "GET_STATUS"

type Outcome int

const (
	// OutcomeStatusRequest: reply the current status to the sender only.
	OutcomeStatusRequest Outcome = iota
	// OutcomeMalformed: payload did not parse, error to sender only.
	OutcomeMalformed
	// OutcomeInvalid: parsed but not a recognized command, error to sender only.
	OutcomeInvalid
	// OutcomeExecuted: state mutated and the command fanned out; the caller
	// acks the sender and then triggers the status broadcast.
	OutcomeExecuted
)

type CommandResult struct {
	Outcome Outcome
	Command *ControlCommand
	Message string
}

// CommandProcessor validates inbound commands, applies them to the shared
// vehicle state and hands the resulting broadcasts to the dispatcher. It
// never writes to the originating session itself; the transport layer turns
// the CommandResult into the sender-directed reply.
type CommandProcessor struct {
	state      *VehicleState
	registry   *SessionRegistry
	dispatcher *BroadcastDispatcher
	metrics    *Metrics
}

func NewCommandProcessor(state *VehicleState, registry *SessionRegistry, dispatcher *BroadcastDispatcher, metrics *Metrics) *CommandProcessor {
	return &CommandProcessor{
		state:      state,
		registry:   registry,
		dispatcher: dispatcher,
		metrics:    metrics,
	}
}

// Handle processes one raw control-channel payload from the given session.
func (p *CommandProcessor) Handle(rawPayload, sessionID string) CommandResult {
	payload := strings.TrimSpace(rawPayload)

	if payload == getStatusSentinel {
		return CommandResult{Outcome: OutcomeStatusRequest}
	}

	var cmd ControlCommand
	if err := json.Unmarshal([]byte(payload), &cmd); err != nil {
		atomic.AddInt64(&p.metrics.CommandsRejected, 1)
		return CommandResult{
			Outcome: OutcomeMalformed,
			Message: "malformed command, expected a JSON control command",
		}
	}
	cmd.ApplyDefaults()
	cmd.SessionID = sessionID

	if !cmd.IsValid() {
		atomic.AddInt64(&p.metrics.CommandsInvalid, 1)
		return CommandResult{
			Outcome: OutcomeInvalid,
			Command: &cmd,
			Message: fmt.Sprintf("invalid command: %s", cmd.Command),
		}
	}

	p.execute(&cmd)
	return CommandResult{Outcome: OutcomeExecuted, Command: &cmd}
}

// ExecuteCommand is the single-shot entry used by the REST layer.
func (p *CommandProcessor) ExecuteCommand(command, value string) error {
	cmd := &ControlCommand{Command: command, Value: value}
	cmd.ApplyDefaults()
	if !cmd.IsValid() {
		atomic.AddInt64(&p.metrics.CommandsInvalid, 1)
		return fmt.Errorf("invalid command: %s", command)
	}
	p.execute(cmd)
	p.BroadcastStatus()
	return nil
}

// EmergencyStop is the dedicated entry point: no JSON envelope, no session
// checks. It always applies and always broadcasts, even when the vehicle is
// already stopped.
func (p *CommandProcessor) EmergencyStop(source string) {
	cmd := &ControlCommand{Command: CommandEmergencyStop, Source: source}
	cmd.ApplyDefaults()
	atomic.AddInt64(&p.metrics.EmergencyStops, 1)
	p.execute(cmd)
	p.BroadcastStatus()
}

// execute applies the command as one unit and fans the command itself out to
// every control session: the vehicle hardware listens on that channel too.
// The status broadcast follows separately, after the sender has been acked.
func (p *CommandProcessor) execute(cmd *ControlCommand) {
	p.state.ApplyCommand(cmd)
	atomic.AddInt64(&p.metrics.CommandsExecuted, 1)

	if cmdJSON, err := json.Marshal(cmd); err == nil {
		p.dispatcher.Broadcast(RoleControl, cmdJSON)
	}
}

// BroadcastStatus pushes the current status to both status-relevant session
// sets, each with its own envelope type.
func (p *CommandProcessor) BroadcastStatus() {
	status := p.state.Snapshot()
	p.dispatcher.Broadcast(RoleControl, statusMessage(status, "BROADCAST_STATUS", nil))
	p.dispatcher.Broadcast(RoleStatus, statusMessage(status, "STATUS_BROADCAST", map[string]interface{}{
		"activeListeners": p.registry.Count(RoleStatus),
	}))
}
