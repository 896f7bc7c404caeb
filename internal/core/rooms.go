package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/metrics"
)

// SubscriptionManager maps a conversation identity to the set of
// connections currently listening for its events. Membership here is
// independent of message history and of presence: a connection joins the
// rooms of its user's conversations at connect time and leaves them all
// on disconnect.
type SubscriptionManager struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Conn     // roomID -> connID -> conn
	conns map[string]map[string]struct{} // connID -> roomIDs, for LeaveAll

	log         *zerolog.Logger
	sendTimeout time.Duration

	// onDead is invoked outside all locks for a connection whose push
	// failed or timed out, so the owner can run full disconnect cleanup.
	onDead func(Conn)
}

// NewSubscriptionManager constructs an empty subscription index.
func NewSubscriptionManager(sendTimeout time.Duration, logger *zerolog.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		rooms:       make(map[string]map[string]Conn),
		conns:       make(map[string]map[string]struct{}),
		log:         logger,
		sendTimeout: sendTimeout,
	}
}

// SetDeadHandler registers the cleanup hook for dead connections. Must be
// called before the first Publish.
func (m *SubscriptionManager) SetDeadHandler(fn func(Conn)) {
	m.onDead = fn
}

// Join subscribes the connection to a room. Idempotent.
func (m *SubscriptionManager) Join(roomID string, conn Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		room = make(map[string]Conn)
		m.rooms[roomID] = room
	}
	room[conn.ID()] = conn

	joined, ok := m.conns[conn.ID()]
	if !ok {
		joined = make(map[string]struct{})
		m.conns[conn.ID()] = joined
	}
	joined[roomID] = struct{}{}
}

// Leave unsubscribes the connection from a room. Unknown pairs are a no-op.
func (m *SubscriptionManager) Leave(roomID, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(roomID, connID)
}

// LeaveAll unsubscribes the connection from every room it joined.
// Called on disconnect; must run even for abrupt drops so no stale
// handles leak.
func (m *SubscriptionManager) LeaveAll(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for roomID := range m.conns[connID] {
		m.leaveLocked(roomID, connID)
	}
}

func (m *SubscriptionManager) leaveLocked(roomID, connID string) {
	if room, ok := m.rooms[roomID]; ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(m.rooms, roomID)
		}
	}
	if joined, ok := m.conns[connID]; ok {
		delete(joined, roomID)
		if len(joined) == 0 {
			delete(m.conns, connID)
		}
	}
}

// Subscribers returns a snapshot of the room's connections.
func (m *SubscriptionManager) Subscribers(roomID string) []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room := m.rooms[roomID]
	if len(room) == 0 {
		return nil
	}
	out := make([]Conn, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

// Publish delivers the event to every currently-subscribed connection.
// A handle that fails or times out is reported to the dead handler and
// never aborts delivery to the remaining handles.
func (m *SubscriptionManager) Publish(ctx context.Context, roomID, event string, payload any) {
	m.PublishExcept(ctx, roomID, "", event, payload)
}

// PublishExcept is Publish minus the named user's connections, for
// events the originator should not receive back.
func (m *SubscriptionManager) PublishExcept(ctx context.Context, roomID, exceptUserID, event string, payload any) {
	subscribers := m.Subscribers(roomID)

	var dead []Conn
	for _, conn := range subscribers {
		if exceptUserID != "" && conn.UserID() == exceptUserID {
			continue
		}
		if err := m.send(ctx, conn, event, payload); err != nil {
			m.log.Warn().Err(err).
				Str("room", roomID).
				Str("conn_id", conn.ID()).
				Str("user_id", conn.UserID()).
				Msg("room publish failed for connection")
			dead = append(dead, conn)
			continue
		}
		metrics.EventsDelivered.WithLabelValues(event).Inc()
	}

	for _, conn := range dead {
		metrics.DeliveryFailures.Inc()
		if m.onDead != nil {
			m.onDead(conn)
		}
	}
}

func (m *SubscriptionManager) send(ctx context.Context, conn Conn, event string, payload any) error {
	sendCtx, cancel := context.WithTimeout(ctx, m.sendTimeout)
	defer cancel()
	return conn.Send(sendCtx, event, payload)
}
