package core

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/metrics"
)

// pusher delivers events to individual connections with the bounded
// send interval. A handle that fails or times out is reported through
// onDead, so direct pushes and room publishes run the same eviction
// path.
type pusher struct {
	presence *Registry
	timeout  time.Duration
	log      *zerolog.Logger

	// onDead must be set before the first push.
	onDead func(Conn)
}

func newPusher(presence *Registry, timeout time.Duration, logger *zerolog.Logger) *pusher {
	return &pusher{presence: presence, timeout: timeout, log: logger}
}

// toConn sends one event to one connection, reporting success.
func (p *pusher) toConn(ctx context.Context, conn Conn, event string, payload any) bool {
	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	err := conn.Send(sendCtx, event, payload)
	cancel()
	if err != nil {
		metrics.DeliveryFailures.Inc()
		p.log.Warn().Err(err).
			Str("user_id", conn.UserID()).
			Str("conn_id", conn.ID()).
			Str("event", event).
			Msg("push failed, evicting connection")
		if p.onDead != nil {
			p.onDead(conn)
		}
		return false
	}
	metrics.EventsDelivered.WithLabelValues(event).Inc()
	return true
}

// toUser sends to every live connection of one user. Per-connection
// failures are isolated.
func (p *pusher) toUser(ctx context.Context, userID, event string, payload any) {
	for _, conn := range p.presence.ConnectionsOf(userID) {
		p.toConn(ctx, conn, event, payload)
	}
}
