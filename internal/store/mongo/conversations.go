package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/chatcore-io/chatcore-server/internal/store"
)

// conversationDoc maps to the conversations collection.
type conversationDoc struct {
	ID             string    `bson:"_id"`
	Type           string    `bson:"type"`
	Name           string    `bson:"name,omitempty"`
	AdminID        string    `bson:"admin_id,omitempty"`
	ParticipantIDs []string  `bson:"participant_ids"`
	MessageIDs     []string  `bson:"message_ids"`
	LastMessage    string    `bson:"last_message"`
	LastSenderName string    `bson:"last_sender_name"`
	CreatedAt      time.Time `bson:"created_at"`
}

func (d *conversationDoc) toModel() *store.Conversation {
	return &store.Conversation{
		ID:             d.ID,
		Type:           store.ConversationType(d.Type),
		Name:           d.Name,
		AdminID:        d.AdminID,
		ParticipantIDs: d.ParticipantIDs,
		MessageIDs:     d.MessageIDs,
		LastMessage:    d.LastMessage,
		LastSenderName: d.LastSenderName,
		CreatedAt:      d.CreatedAt,
	}
}

// InsertConversation persists a new conversation.
func (s *Store) InsertConversation(ctx context.Context, conv *store.Conversation) error {
	doc := conversationDoc{
		ID:             conv.ID,
		Type:           string(conv.Type),
		Name:           conv.Name,
		AdminID:        conv.AdminID,
		ParticipantIDs: conv.ParticipantIDs,
		MessageIDs:     conv.MessageIDs,
		LastMessage:    conv.LastMessage,
		LastSenderName: conv.LastSenderName,
		CreatedAt:      conv.CreatedAt,
	}
	if doc.MessageIDs == nil {
		doc.MessageIDs = []string{}
	}
	if _, err := s.conversations.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert conversation %s: %w", conv.ID, err)
	}
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	var doc conversationDoc
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// Conversations returns all conversations, for reconciliation sweeps.
func (s *Store) Conversations(ctx context.Context) ([]*store.Conversation, error) {
	cursor, err := s.conversations.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []conversationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode conversations: %w", err)
	}

	out := make([]*store.Conversation, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// AddParticipant adds the user to the participant list via $addToSet.
func (s *Store) AddParticipant(ctx context.Context, convID, userID string) error {
	res, err := s.conversations.UpdateByID(ctx, convID, bson.M{
		"$addToSet": bson.M{"participant_ids": userID},
	})
	if err != nil {
		return fmt.Errorf("add participant %s to conversation %s: %w", userID, convID, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RemoveParticipant removes the user from the participant list via $pull.
func (s *Store) RemoveParticipant(ctx context.Context, convID, userID string) error {
	res, err := s.conversations.UpdateByID(ctx, convID, bson.M{
		"$pull": bson.M{"participant_ids": userID},
	})
	if err != nil {
		return fmt.Errorf("remove participant %s from conversation %s: %w", userID, convID, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetAdmin replaces the group's admin identity.
func (s *Store) SetAdmin(ctx context.Context, convID, userID string) error {
	res, err := s.conversations.UpdateByID(ctx, convID, bson.M{
		"$set": bson.M{"admin_id": userID},
	})
	if err != nil {
		return fmt.Errorf("set admin of conversation %s: %w", convID, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendMessage records the message id and updates the cached summary in one write.
func (s *Store) AppendMessage(ctx context.Context, convID, messageID, lastMessage, lastSenderName string) error {
	res, err := s.conversations.UpdateByID(ctx, convID, bson.M{
		"$push": bson.M{"message_ids": messageID},
		"$set": bson.M{
			"last_message":     lastMessage,
			"last_sender_name": lastSenderName,
		},
	})
	if err != nil {
		return fmt.Errorf("append message %s to conversation %s: %w", messageID, convID, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
