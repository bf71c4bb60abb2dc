package main

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// =============================================================================
// SESSIONS & BROADCAST
// =============================================================================

type SessionRole string

const (
	RoleControl SessionRole = "control"
	RoleStatus  SessionRole = "status"
	RoleVideo   SessionRole = "video"
)

var errSessionClosed = errors.New("session closed")

// messageSender is the write half of a connection. *websocket.Conn satisfies
// it; tests substitute fakes.
type messageSender interface {
	WriteMessage(messageType int, data []byte) error
}

// Session is one live connection. The registry owns the id->session mapping;
// everything else holds a session only for the duration of a single send.
type Session struct {
	ID          string
	Role        SessionRole
	RemoteAddr  string
	ConnectedAt time.Time

	conn messageSender

	// writeMu serializes writes so two messages queued to the same session
	// are never interleaved or reordered.
	writeMu sync.Mutex
	closed  bool

	// streaming task handle, video sessions only (see stream.go)
	stream *streamTask
}

func NewSession(id string, role SessionRole, conn messageSender, remoteAddr string) *Session {
	return &Session{
		ID:          id,
		Role:        role,
		RemoteAddr:  remoteAddr,
		ConnectedAt: time.Now(),
		conn:        conn,
	}
}

// Send writes one text message to the connection. It fails without side
// effects once the session is closed.
func (s *Session) Send(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.closed {
		return errSessionClosed
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) IsOpen() bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return !s.closed
}

// Close marks the session closed. The underlying connection is closed by the
// transport handler that owns its read loop.
func (s *Session) Close() {
	s.writeMu.Lock()
	s.closed = true
	s.writeMu.Unlock()
}

// =============================================================================
// SESSION REGISTRY
// =============================================================================

// SessionRegistry tracks live sessions per role. Safe for concurrent
// register/remove/list from any number of connection goroutines.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

func (r *SessionRegistry) Register(sess *Session) {
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
}

// Remove closes and drops the session. Removing an unknown id is a no-op; a
// removal racing an in-flight broadcast just makes that recipient's send
// fail, which the dispatcher skips.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if ok {
		sess.Close()
	}
}

func (r *SessionRegistry) Get(sessionID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[sessionID]
}

// ListByRole returns a point-in-time snapshot. Order is not significant.
func (r *SessionRegistry) ListByRole(role SessionRole) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		if sess.Role == role {
			out = append(out, sess)
		}
	}
	return out
}

func (r *SessionRegistry) Count(role SessionRole) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sess := range r.sessions {
		if sess.Role == role {
			n++
		}
	}
	return n
}

// =============================================================================
// BROADCAST DISPATCHER
// =============================================================================

// BroadcastDispatcher fans one message out to every open session of a role.
// Delivery is best effort: a failed or just-closed recipient is logged and
// skipped, never aborting the rest of the batch and never surfacing an error
// to the command path.
type BroadcastDispatcher struct {
	registry *SessionRegistry
	metrics  *Metrics
}

func NewBroadcastDispatcher(registry *SessionRegistry, metrics *Metrics) *BroadcastDispatcher {
	return &BroadcastDispatcher{registry: registry, metrics: metrics}
}

// Broadcast returns the number of sessions the message reached. An empty
// session set is a no-op.
func (d *BroadcastDispatcher) Broadcast(role SessionRole, message []byte) int {
	sessions := d.registry.ListByRole(role)
	if len(sessions) == 0 {
		return 0
	}

	atomic.AddInt64(&d.metrics.BroadcastsSent, 1)
	delivered := 0
	for _, sess := range sessions {
		if !sess.IsOpen() {
			continue
		}
		if err := sess.Send(message); err != nil {
			atomic.AddInt64(&d.metrics.DeliveriesFailed, 1)
			log.Printf("⚠️ Broadcast delivery failed for session %s: %v", sess.ID, err)
			continue
		}
		atomic.AddInt64(&d.metrics.MessagesDelivered, 1)
		delivered++
	}
	return delivered
}
