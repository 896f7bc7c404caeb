package core

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/metrics"
	"github.com/chatcore-io/chatcore-server/internal/store"
)

// ReceiptTracker mutates per-recipient read state and tells the sender's
// live connections who read what.
type ReceiptTracker struct {
	store store.Store
	rooms *SubscriptionManager
	push  *pusher
	log   *zerolog.Logger
}

// NewReceiptTracker constructs the read-receipt tracker.
func NewReceiptTracker(st store.Store, rooms *SubscriptionManager, push *pusher, logger *zerolog.Logger) *ReceiptTracker {
	return &ReceiptTracker{
		store: st,
		rooms: rooms,
		push:  push,
		log:   logger,
	}
}

// MarkRead flips the reader's flag on the message. Marking an
// already-read message is a no-op, not an error, and only the first call
// notifies the sender.
func (t *ReceiptTracker) MarkRead(ctx context.Context, messageID, readerID string) error {
	msg, err := t.store.GetMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError("message not found")
	}
	if err != nil {
		t.log.Error().Err(err).Str("message_id", messageID).Msg("load message failed")
		return serverError("failed to load message")
	}
	if _, ok := msg.ReadStatus[readerID]; !ok {
		return forbiddenError("you are not a recipient of this message")
	}

	changed, err := t.store.SetReadFlag(ctx, messageID, readerID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError("message not found")
	}
	if err != nil {
		t.log.Error().Err(err).
			Str("message_id", messageID).
			Str("user_id", readerID).
			Msg("set read flag failed")
		return serverError("failed to mark message read")
	}
	if !changed {
		return nil
	}
	metrics.ReadReceipts.Inc()

	event := ReadReceiptEvent{
		MessageID:      messageID,
		ConversationID: msg.ConversationID,
		ReaderID:       readerID,
	}

	// Group messages broadcast through the room so every member,
	// the sender included, can render "read by" state. Private
	// messages only concern the sender, notified directly.
	conv, err := t.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		t.log.Warn().Err(err).
			Str("conversation_id", msg.ConversationID).
			Str("message_id", messageID).
			Msg("load conversation for receipt broadcast failed")
		t.push.toUser(ctx, msg.SenderID, EventReadReceipt, event)
		return nil
	}

	if conv.Type == store.ConversationGroup {
		t.rooms.Publish(ctx, msg.ConversationID, EventReadReceipt, event)
	} else {
		t.push.toUser(ctx, msg.SenderID, EventReadReceipt, event)
	}
	return nil
}
