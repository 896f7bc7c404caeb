package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/metrics"
	"github.com/chatcore-io/chatcore-server/internal/store"
)

// Fanout routes newly authored messages: it validates, persists, updates
// the conversation's cached summary and pushes delivery events to every
// live connection of every recipient.
//
// Delivery is at-least-once via persistence plus best-effort push: once
// the message record is durable the send has succeeded, and any push
// failure is logged, never surfaced to the sender.
type Fanout struct {
	store    store.Store
	rooms    *SubscriptionManager
	push     *pusher
	log      *zerolog.Logger
	maxChars int
}

// NewFanout constructs the fan-out engine.
func NewFanout(st store.Store, rooms *SubscriptionManager, push *pusher, maxChars int, logger *zerolog.Logger) *Fanout {
	return &Fanout{
		store:    st,
		rooms:    rooms,
		push:     push,
		log:      logger,
		maxChars: maxChars,
	}
}

// SendMessage runs the full send pipeline and returns the persisted
// message id.
func (f *Fanout) SendMessage(ctx context.Context, convID, senderID, content string) (string, error) {
	if content == "" {
		return "", validationError("message cannot be empty")
	}
	if len([]rune(content)) > f.maxChars {
		return "", validationError("message is too long")
	}

	conv, err := f.store.GetConversation(ctx, convID)
	if errors.Is(err, store.ErrNotFound) {
		return "", notFoundError("conversation not found")
	}
	if err != nil {
		f.log.Error().Err(err).Str("conversation_id", convID).Msg("load conversation failed")
		return "", serverError("failed to load conversation")
	}
	if !conv.HasParticipant(senderID) {
		return "", forbiddenError("you are not a participant in this conversation")
	}

	sender, err := f.store.GetUser(ctx, senderID)
	if err != nil {
		f.log.Error().Err(err).Str("user_id", senderID).Msg("load sender failed")
		return "", serverError("failed to load sender")
	}

	// Recipients are the participants at creation time, minus the sender.
	// The read-status key set is fixed here and never follows later
	// membership changes.
	readStatus := make(map[string]bool, len(conv.ParticipantIDs)-1)
	for _, id := range conv.ParticipantIDs {
		if id != senderID {
			readStatus[id] = false
		}
	}

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		SenderID:       senderID,
		SenderName:     sender.FullName,
		Content:        content,
		SentAt:         time.Now().UTC(),
		ReadStatus:     readStatus,
	}
	if err := f.store.InsertMessage(ctx, msg); err != nil {
		f.log.Error().Err(err).
			Str("conversation_id", convID).
			Str("message_id", msg.ID).
			Msg("persist message failed")
		return "", serverError("failed to save the message")
	}
	metrics.MessagesSent.WithLabelValues(string(conv.Type)).Inc()

	// From here on the message is durable; cache and delivery failures
	// are non-fatal because clients can re-fetch history.
	if err := f.store.AppendMessage(ctx, convID, msg.ID, msg.Content, msg.SenderName); err != nil {
		f.log.Warn().Err(err).
			Str("conversation_id", convID).
			Str("message_id", msg.ID).
			Msg("update conversation summary failed")
	}

	f.deliver(ctx, conv, msg)
	return msg.ID, nil
}

// History returns the conversation's recent messages for a participant,
// oldest first. This is the re-fetch path that makes delivery
// at-least-once.
func (f *Fanout) History(ctx context.Context, convID, callerID string, limit int64) ([]*store.Message, error) {
	conv, err := f.store.GetConversation(ctx, convID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundError("conversation not found")
	}
	if err != nil {
		f.log.Error().Err(err).Str("conversation_id", convID).Msg("load conversation failed")
		return nil, serverError("failed to load conversation")
	}
	if !conv.HasParticipant(callerID) {
		return nil, forbiddenError("you are not a participant in this conversation")
	}

	msgs, err := f.store.ListMessages(ctx, convID, limit)
	if err != nil {
		f.log.Error().Err(err).Str("conversation_id", convID).Msg("list messages failed")
		return nil, serverError("failed to load history")
	}
	return msgs, nil
}

func (f *Fanout) deliver(ctx context.Context, conv *store.Conversation, msg *store.Message) {
	event := MessageEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		Content:        msg.Content,
		SentAt:         msg.SentAt,
	}

	if conv.Type == store.ConversationGroup {
		// The room inherently reaches every subscribed connection of
		// every member, whatever devices they are on.
		f.rooms.Publish(ctx, conv.ID, EventMessage, event)
		return
	}

	// Private: echo to the sender's own devices, then the recipient's.
	for _, userID := range conv.ParticipantIDs {
		f.push.toUser(ctx, userID, EventMessage, event)
	}
}

// NotifyTyping publishes an ephemeral typing indicator to the other
// live subscribers of the conversation. Nothing is persisted.
func (f *Fanout) NotifyTyping(ctx context.Context, convID, userID string) error {
	conv, err := f.store.GetConversation(ctx, convID)
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError("conversation not found")
	}
	if err != nil {
		f.log.Error().Err(err).Str("conversation_id", convID).Msg("load conversation failed")
		return serverError("failed to load conversation")
	}
	if !conv.HasParticipant(userID) {
		return forbiddenError("you are not a participant in this conversation")
	}

	user, err := f.store.GetUser(ctx, userID)
	if err != nil {
		f.log.Error().Err(err).Str("user_id", userID).Msg("load typing user failed")
		return serverError("failed to load user")
	}

	f.rooms.PublishExcept(ctx, convID, userID, EventTyping, TypingEvent{
		ConversationID: convID,
		UserID:         userID,
		UserName:       user.FullName,
	})
	return nil
}
