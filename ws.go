package main

import (
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// =============================================================================
// WEBSOCKET CHANNELS
// =============================================================================

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:   65535,
	WriteBufferSize:  65535,
	HandshakeTimeout: 10 * time.Second,
}

// upgradeSession upgrades the HTTP request and registers a fresh session for
// the role. A reconnecting client always becomes a new session id.
func (s *VehicleServer) upgradeSession(w http.ResponseWriter, r *http.Request, role SessionRole) (*Session, error) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		atomic.AddInt64(&s.metrics.FailedConnections, 1)
		return nil, err
	}

	sess := NewSession(uuid.New().String(), role, conn, r.RemoteAddr)
	s.registry.Register(sess)
	s.metrics.IncrementConnections()
	return sess, nil
}

// closeSession tears the session down after its read loop ends.
func (s *VehicleServer) closeSession(sess *Session, conn *websocket.Conn) {
	s.scheduler.Stop(sess)
	s.registry.Remove(sess.ID)
	s.metrics.DecrementConnections()
	conn.Close()
}

// readLoop delivers each inbound text message to onMessage until the
// connection dies.
func readLoop(sess *Session, conn *websocket.Conn, onMessage func(payload string)) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("❌ WebSocket error for session %s: %v", sess.ID, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		onMessage(string(data))
	}
}

// -----------------------------------------------------------------------------
// Control channel
// -----------------------------------------------------------------------------

func (s *VehicleServer) handleControlWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.upgradeSession(w, r, RoleControl)
	if err != nil {
		log.Printf("❌ Control WebSocket upgrade failed: %v", err)
		return
	}
	conn := sess.conn.(*websocket.Conn)
	defer s.closeSession(sess, conn)

	log.Printf("🔗 Control connection established: %s (%s)", sess.ID, sess.RemoteAddr)

	sess.Send(welcomeMessage(sess.ID))
	s.sendControlStatus(sess)

	readLoop(sess, conn, func(payload string) {
		result := s.processor.Handle(payload, sess.ID)
		switch result.Outcome {
		case OutcomeStatusRequest:
			s.sendControlStatus(sess)
		case OutcomeMalformed, OutcomeInvalid:
			sess.Send(errorMessage(result.Message))
		case OutcomeExecuted:
			sess.Send(ackMessage(result.Command.Command))
			s.processor.BroadcastStatus()
		}
	})

	log.Printf("🔌 Control connection closed: %s", sess.ID)
}

func (s *VehicleServer) sendControlStatus(sess *Session) {
	sess.Send(statusMessage(s.state.Snapshot(), "STATUS_UPDATE", map[string]interface{}{
		"activeConnections": s.registry.Count(RoleControl),
	}))
}

// -----------------------------------------------------------------------------
// Status channel
// -----------------------------------------------------------------------------

func (s *VehicleServer) handleStatusWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.upgradeSession(w, r, RoleStatus)
	if err != nil {
		log.Printf("❌ Status WebSocket upgrade failed: %v", err)
		return
	}
	conn := sess.conn.(*websocket.Conn)
	defer s.closeSession(sess, conn)

	log.Printf("🔗 Status listener connected: %s", sess.ID)

	sess.Send(statusWelcomeMessage())
	sess.Send(statusMessage(s.state.Snapshot(), "STATUS_UPDATE", nil))

	readLoop(sess, conn, func(payload string) {
		if strings.TrimSpace(payload) == getStatusSentinel {
			sess.Send(statusMessage(s.state.Snapshot(), "STATUS_UPDATE", nil))
		}
	})

	log.Printf("🔌 Status listener disconnected: %s", sess.ID)
}

// -----------------------------------------------------------------------------
// Video channel
// -----------------------------------------------------------------------------

func (s *VehicleServer) handleVideoWS(w http.ResponseWriter, r *http.Request) {
	sess, err := s.upgradeSession(w, r, RoleVideo)
	if err != nil {
		log.Printf("❌ Video WebSocket upgrade failed: %v", err)
		return
	}
	conn := sess.conn.(*websocket.Conn)
	defer s.closeSession(sess, conn)

	log.Printf("🎥 Video connection established: %s", sess.ID)

	sess.Send(videoWelcomeMessage(sess.ID))

	readLoop(sess, conn, func(payload string) {
		switch {
		case payload == "start":
			s.scheduler.Start(sess)
			sess.Send(videoControlMessage("streaming_started"))
		case payload == "stop":
			s.scheduler.Stop(sess)
			sess.Send(videoControlMessage("streaming_stopped"))
		case payload == "ping":
			sess.Send(pongMessage())
		case strings.HasPrefix(payload, "fps:"):
			// cadence is fixed; acknowledged for client compatibility
			sess.Send(marshalMessage(map[string]interface{}{
				"type":    "control",
				"message": "fps adjustment received",
			}))
		}
	})

	log.Printf("🎥 Video connection closed: %s", sess.ID)
}
