// Package mongo implements the store interfaces on top of MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const (
	collUsers         = "users"
	collConversations = "conversations"
	collMessages      = "messages"

	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// Store implements store.Store backed by a MongoDB database.
type Store struct {
	client        *mongo.Client
	users         *mongo.Collection
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// New connects to MongoDB, verifies the connection and returns a Store.
func New(ctx context.Context, uri, database string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(connectTimeout)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	return &Store{
		client:        client,
		users:         db.Collection(collUsers),
		conversations: db.Collection(collConversations),
		messages:      db.Collection(collMessages),
	}, nil
}

// EnsureIndexes creates the indexes the fan-out paths query on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.messages.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: -1}}},
		{Keys: bson.D{{Key: "sent_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}

	_, err = s.conversations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "participant_ids", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create conversation index: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
