package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chatcore-io/chatcore-server/internal/store"
)

// newTestStore connects to the MongoDB instance named by MONGODB_URI,
// or skips the test when none is configured.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set, skipping mongo integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := New(ctx, uri, "chatcore_test")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(closeCtx)
	})

	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("ensure indexes: %v", err)
	}
	return s
}

func TestUserMembershipRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	userID := uuid.NewString()
	if err := s.PutUser(ctx, &store.User{ID: userID, FullName: "Integration User"}); err != nil {
		t.Fatalf("put user: %v", err)
	}

	convID := uuid.NewString()
	if err := s.AddConversationToUser(ctx, userID, convID, false); err != nil {
		t.Fatalf("add conversation: %v", err)
	}
	// Repeat should be a no-op thanks to $addToSet.
	if err := s.AddConversationToUser(ctx, userID, convID, false); err != nil {
		t.Fatalf("add conversation again: %v", err)
	}

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(u.ConversationIDs) != 1 || u.ConversationIDs[0] != convID {
		t.Fatalf("unexpected conversation ids %v", u.ConversationIDs)
	}

	if err := s.RemoveConversationFromUser(ctx, userID, convID, false); err != nil {
		t.Fatalf("remove conversation: %v", err)
	}
	u, _ = s.GetUser(ctx, userID)
	if len(u.ConversationIDs) != 0 {
		t.Fatalf("expected empty conversation ids, got %v", u.ConversationIDs)
	}
}

func TestGetUserNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUser(context.Background(), uuid.NewString())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetReadFlagIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: uuid.NewString(),
		SenderID:       "alice",
		Content:        "hi",
		SentAt:         time.Now().UTC().Truncate(time.Millisecond),
		ReadStatus:     map[string]bool{"bob": false},
	}
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("insert message: %v", err)
	}

	changed, err := s.SetReadFlag(ctx, msg.ID, "bob")
	if err != nil {
		t.Fatalf("set read flag: %v", err)
	}
	if !changed {
		t.Fatal("first read should report a change")
	}

	changed, err = s.SetReadFlag(ctx, msg.ID, "bob")
	if err != nil {
		t.Fatalf("repeat set read flag: %v", err)
	}
	if changed {
		t.Fatal("second read should not report a change")
	}
}
