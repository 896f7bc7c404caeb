package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/store"
)

// Hub ties the presence registry, subscription manager, membership
// coordinator, fan-out engine, receipt tracker and status broadcaster
// together behind the surface the transport layer calls.
type Hub struct {
	store    store.Store
	presence *Registry
	rooms    *SubscriptionManager
	members  *Coordinator
	fanout   *Fanout
	receipts *ReceiptTracker
	status   *StatusBroadcaster
	log      *zerolog.Logger

	// opTimeout bounds the background work spawned for presence
	// transitions and dead-connection cleanup.
	opTimeout time.Duration
}

// NewHub wires the core components around one store.
func NewHub(st store.Store, maxMessageChars int, sendTimeout time.Duration, logger *zerolog.Logger) *Hub {
	presence := NewRegistry()
	rooms := NewSubscriptionManager(sendTimeout, logger)
	push := newPusher(presence, sendTimeout, logger)

	h := &Hub{
		store:     st,
		presence:  presence,
		rooms:     rooms,
		members:   NewCoordinator(st, logger),
		fanout:    NewFanout(st, rooms, push, maxMessageChars, logger),
		receipts:  NewReceiptTracker(st, rooms, push, logger),
		status:    NewStatusBroadcaster(st, push, logger),
		log:       logger,
		opTimeout: 30 * time.Second,
	}
	// Every delivery path, room publish or direct push, evicts a
	// handle whose send fails or times out.
	rooms.SetDeadHandler(h.evict)
	push.onDead = h.evict
	return h
}

// Presence exposes the registry for status queries.
func (h *Hub) Presence() *Registry { return h.presence }

// Rooms exposes the subscription manager.
func (h *Hub) Rooms() *SubscriptionManager { return h.rooms }

// Members exposes the membership coordinator.
func (h *Hub) Members() *Coordinator { return h.members }

// OnConnect admits a new connection: it registers the handle, joins the
// rooms of every conversation and group the user belongs to as of this
// moment, and broadcasts the went-online transition if this is the
// user's first connection.
//
// Membership changes made while the user stays connected do not join
// rooms retroactively; they take effect on the next connect.
func (h *Hub) OnConnect(ctx context.Context, conn Conn) error {
	userID := conn.UserID()

	user, err := h.store.GetUser(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError("user not found")
	}
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("load user on connect failed")
		return serverError("failed to load user")
	}

	first := h.presence.Admit(userID, conn)

	for _, convID := range user.ConversationIDs {
		h.rooms.Join(convID, conn)
	}
	for _, groupID := range user.GroupIDs {
		h.rooms.Join(groupID, conn)
	}

	h.log.Debug().
		Str("user_id", userID).
		Str("conn_id", conn.ID()).
		Bool("went_online", first).
		Msg("connection admitted")

	if first {
		go h.broadcastStatus(userID, true)
	}
	return nil
}

// OnDisconnect runs the must-run cleanup for a closed connection,
// whether the close was orderly or an abrupt drop: all room
// subscriptions go away, the handle leaves the registry, and the
// went-offline transition is broadcast if it was the user's last
// connection.
func (h *Hub) OnDisconnect(conn Conn) {
	userID := conn.UserID()

	h.rooms.LeaveAll(conn.ID())
	last := h.presence.Remove(userID, conn.ID())

	h.log.Debug().
		Str("user_id", userID).
		Str("conn_id", conn.ID()).
		Bool("went_offline", last).
		Msg("connection removed")

	if last {
		go h.broadcastStatus(userID, false)
	}
}

// evict is the dead handler for connections whose pushes time out. The
// cleanup is identical to an explicit disconnect.
func (h *Hub) evict(conn Conn) {
	h.log.Info().
		Str("user_id", conn.UserID()).
		Str("conn_id", conn.ID()).
		Msg("evicting unresponsive connection")
	h.OnDisconnect(conn)
}

// broadcastStatus runs the friend fan-out on its own context so it
// survives the triggering request and its failures are still logged.
func (h *Hub) broadcastStatus(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), h.opTimeout)
	defer cancel()
	h.status.Broadcast(ctx, userID, online)
}

// SendMessage routes a newly authored message; see Fanout.
func (h *Hub) SendMessage(ctx context.Context, convID, senderID, content string) (string, error) {
	return h.fanout.SendMessage(ctx, convID, senderID, content)
}

// History returns recent messages of a conversation for a participant.
func (h *Hub) History(ctx context.Context, convID, callerID string, limit int64) ([]*store.Message, error) {
	return h.fanout.History(ctx, convID, callerID, limit)
}

// NotifyTyping publishes a typing indicator to the conversation's
// other subscribers; see Fanout.
func (h *Hub) NotifyTyping(ctx context.Context, convID, userID string) error {
	return h.fanout.NotifyTyping(ctx, convID, userID)
}

// MarkRead flips a recipient's read flag; see ReceiptTracker.
func (h *Hub) MarkRead(ctx context.Context, messageID, readerID string) error {
	return h.receipts.MarkRead(ctx, messageID, readerID)
}

// JoinConversation subscribes a connection to a conversation's room.
// Only participants may join.
func (h *Hub) JoinConversation(ctx context.Context, conn Conn, convID string) error {
	conv, err := h.store.GetConversation(ctx, convID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError("conversation not found")
	}
	if err != nil {
		h.log.Error().Err(err).Str("conversation_id", convID).Msg("load conversation failed")
		return serverError("failed to load conversation")
	}
	if !conv.HasParticipant(conn.UserID()) {
		return forbiddenError("you are not a participant in this conversation")
	}
	h.rooms.Join(convID, conn)
	return nil
}

// LeaveConversation unsubscribes a connection from a conversation's room.
func (h *Hub) LeaveConversation(conn Conn, convID string) {
	h.rooms.Leave(convID, conn.ID())
}

// GetOnlineStatus reports, per requested user, whether they have at
// least one live connection on this process.
func (h *Hub) GetOnlineStatus(userIDs []string) map[string]bool {
	out := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		out[id] = h.presence.IsOnline(id)
	}
	return out
}

// RunReconciler periodically sweeps membership lists until the context
// is cancelled. It is the safety net behind the coordinator's
// two-sided writes.
func (h *Hub) RunReconciler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
			if err := h.members.Reconcile(sweepCtx); err != nil {
				h.log.Warn().Err(err).Msg("membership sweep failed")
			}
			cancel()
		}
	}
}
