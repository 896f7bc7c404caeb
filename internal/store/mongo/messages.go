package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/chatcore-io/chatcore-server/internal/store"
)

// messageDoc maps to the messages collection.
type messageDoc struct {
	ID             string          `bson:"_id"`
	ConversationID string          `bson:"conversation_id"`
	SenderID       string          `bson:"sender_id"`
	SenderName     string          `bson:"sender_name"`
	Content        string          `bson:"content"`
	SentAt         time.Time       `bson:"sent_at"`
	ReadStatus     map[string]bool `bson:"read_status"`
}

func (d *messageDoc) toModel() *store.Message {
	return &store.Message{
		ID:             d.ID,
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		SenderName:     d.SenderName,
		Content:        d.Content,
		SentAt:         d.SentAt,
		ReadStatus:     d.ReadStatus,
	}
}

// InsertMessage persists a new message with its initial read status.
func (s *Store) InsertMessage(ctx context.Context, msg *store.Message) error {
	doc := messageDoc{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderName:     msg.SenderName,
		Content:        msg.Content,
		SentAt:         msg.SentAt,
		ReadStatus:     msg.ReadStatus,
	}
	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert message %s: %w", msg.ID, err)
	}
	return nil
}

// GetMessage retrieves a message by ID.
func (s *Store) GetMessage(ctx context.Context, id string) (*store.Message, error) {
	var doc messageDoc
	err := s.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find message %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// SetReadFlag flips one recipient's read flag via a field-level update.
// The filter only matches an unread flag, so the modified count tells
// whether anything changed.
func (s *Store) SetReadFlag(ctx context.Context, messageID, readerID string) (bool, error) {
	field := "read_status." + readerID
	res, err := s.messages.UpdateOne(ctx,
		bson.M{"_id": messageID, field: false},
		bson.M{"$set": bson.M{field: true}},
	)
	if err != nil {
		return false, fmt.Errorf("set read flag on message %s: %w", messageID, err)
	}
	if res.ModifiedCount > 0 {
		return true, nil
	}

	// Nothing matched: distinguish already-read from unknown message or reader.
	msg, err := s.GetMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	if _, ok := msg.ReadStatus[readerID]; !ok {
		return false, store.ErrNotFound
	}
	return false, nil
}

// ListMessages retrieves the most recent messages of a conversation, oldest first.
func (s *Store) ListMessages(ctx context.Context, convID string, limit int64) ([]*store.Message, error) {
	opts := options.Find().
		SetSort(bson.M{"sent_at": -1}).
		SetLimit(limit)

	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": convID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages of conversation %s: %w", convID, err)
	}
	defer cursor.Close(ctx)

	var docs []messageDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}

	out := make([]*store.Message, len(docs))
	for i := range docs {
		// Reverse the newest-first sort into chronological order.
		out[len(docs)-1-i] = docs[i].toModel()
	}
	return out, nil
}
