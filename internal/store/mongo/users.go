package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/chatcore-io/chatcore-server/internal/store"
)

// userDoc maps to the users collection.
type userDoc struct {
	ID              string   `bson:"_id"`
	FullName        string   `bson:"full_name"`
	FriendIDs       []string `bson:"friend_ids"`
	ConversationIDs []string `bson:"conversation_ids"`
	GroupIDs        []string `bson:"group_ids"`
	Online          bool     `bson:"online"`
}

func (d *userDoc) toModel() *store.User {
	return &store.User{
		ID:              d.ID,
		FullName:        d.FullName,
		FriendIDs:       d.FriendIDs,
		ConversationIDs: d.ConversationIDs,
		GroupIDs:        d.GroupIDs,
		Online:          d.Online,
	}
}

// PutUser inserts or replaces a user record. Accounts are provisioned
// out of band, so this mostly serves seeding and tooling.
func (s *Store) PutUser(ctx context.Context, u *store.User) error {
	doc := userDoc{
		ID:              u.ID,
		FullName:        u.FullName,
		FriendIDs:       u.FriendIDs,
		ConversationIDs: u.ConversationIDs,
		GroupIDs:        u.GroupIDs,
		Online:          u.Online,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, doc, opts); err != nil {
		return fmt.Errorf("put user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser retrieves a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	var doc userDoc
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return doc.toModel(), nil
}

// GetUsers retrieves multiple users at once, skipping unknown IDs.
func (s *Store) GetUsers(ctx context.Context, ids []string) ([]*store.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	out := make([]*store.User, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// Users returns all user records, for reconciliation sweeps.
func (s *Store) Users(ctx context.Context) ([]*store.User, error) {
	cursor, err := s.users.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("find all users: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []userDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	out := make([]*store.User, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toModel())
	}
	return out, nil
}

// AddConversationToUser adds the id to the user's membership list via $addToSet.
func (s *Store) AddConversationToUser(ctx context.Context, userID, convID string, group bool) error {
	res, err := s.users.UpdateByID(ctx, userID, bson.M{
		"$addToSet": bson.M{membershipField(group): convID},
	})
	if err != nil {
		return fmt.Errorf("add conversation %s to user %s: %w", convID, userID, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// RemoveConversationFromUser removes the id from the user's membership list via $pull.
func (s *Store) RemoveConversationFromUser(ctx context.Context, userID, convID string, group bool) error {
	res, err := s.users.UpdateByID(ctx, userID, bson.M{
		"$pull": bson.M{membershipField(group): convID},
	})
	if err != nil {
		return fmt.Errorf("remove conversation %s from user %s: %w", convID, userID, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetUserOnline mirrors the presence flag into the user record.
func (s *Store) SetUserOnline(ctx context.Context, userID string, online bool) error {
	res, err := s.users.UpdateByID(ctx, userID, bson.M{
		"$set": bson.M{"online": online},
	})
	if err != nil {
		return fmt.Errorf("set online for user %s: %w", userID, err)
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func membershipField(group bool) string {
	if group {
		return "group_ids"
	}
	return "conversation_ids"
}
