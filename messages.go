package main

import (
	"encoding/json"
	"time"
)

// =============================================================================
// WIRE MESSAGES
// =============================================================================

// marshalMessage never fails the caller: an unserializable payload degrades
// to an empty object, mirroring how status serialization behaves elsewhere.
func marshalMessage(payload map[string]interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return []byte("{}")
	}
	return data
}

func statusMessage(status VehicleStatus, msgType string, extra map[string]interface{}) []byte {
	payload := status.toMap()
	payload["type"] = msgType
	payload["timestamp"] = time.Now().Format(statusTimeFormat)
	for k, v := range extra {
		payload[k] = v
	}
	return marshalMessage(payload)
}

func welcomeMessage(sessionID string) []byte {
	return marshalMessage(map[string]interface{}{
		"type":      "WELCOME",
		"message":   "connected to vehicle control",
		"sessionId": sessionID,
		"timestamp": time.Now().Format(statusTimeFormat),
	})
}

func statusWelcomeMessage() []byte {
	return marshalMessage(map[string]interface{}{
		"type":      "STATUS_WELCOME",
		"message":   "connected to status updates",
		"timestamp": time.Now().Format(statusTimeFormat),
	})
}

func ackMessage(command string) []byte {
	return marshalMessage(map[string]interface{}{
		"type":      "ACK",
		"command":   command,
		"status":    "EXECUTED",
		"timestamp": time.Now().UnixMilli(),
	})
}

func errorMessage(message string) []byte {
	return marshalMessage(map[string]interface{}{
		"type":      "ERROR",
		"message":   message,
		"timestamp": time.Now().Format(statusTimeFormat),
	})
}

func videoWelcomeMessage(sessionID string) []byte {
	return marshalMessage(map[string]interface{}{
		"type":      "welcome",
		"message":   "video stream connected",
		"sessionId": sessionID,
	})
}

func videoControlMessage(status string) []byte {
	return marshalMessage(map[string]interface{}{
		"type":   "control",
		"status": status,
	})
}

func pongMessage() []byte {
	return marshalMessage(map[string]interface{}{
		"type":      "pong",
		"timestamp": time.Now().UnixMilli(),
	})
}
