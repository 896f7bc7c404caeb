package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/metrics"
	"github.com/chatcore-io/chatcore-server/internal/store"
)

// StatusBroadcaster fans a presence transition out to every live
// connection of every friend of the affected user. It runs without
// holding any registry lock and a failure for one friend never blocks
// the rest.
type StatusBroadcaster struct {
	store store.Store
	push  *pusher
	log   *zerolog.Logger
}

// NewStatusBroadcaster constructs the broadcaster.
func NewStatusBroadcaster(st store.Store, push *pusher, logger *zerolog.Logger) *StatusBroadcaster {
	return &StatusBroadcaster{
		store: st,
		push:  push,
		log:   logger,
	}
}

// Broadcast handles one online/offline transition for the user.
func (b *StatusBroadcaster) Broadcast(ctx context.Context, userID string, online bool) {
	direction := "offline"
	if online {
		direction = "online"
	}
	metrics.PresenceTransitions.WithLabelValues(direction).Inc()

	// Mirror the flag into the user record so offline reads agree with
	// the registry. Best-effort: the registry stays authoritative.
	if err := b.store.SetUserOnline(ctx, userID, online); err != nil {
		b.log.Warn().Err(err).Str("user_id", userID).Msg("mirror online flag failed")
	}

	user, err := b.store.GetUser(ctx, userID)
	if err != nil {
		b.log.Error().Err(err).Str("user_id", userID).Msg("load user for status broadcast failed")
		return
	}

	event := StatusEvent{UserID: userID, IsOnline: online}
	for _, friendID := range user.FriendIDs {
		b.push.toUser(ctx, friendID, EventStatus, event)
	}
}
