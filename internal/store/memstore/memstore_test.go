package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatcore-io/chatcore-server/internal/store"
)

func TestGetUserNotFound(t *testing.T) {
	s := New()
	if _, err := s.GetUser(context.Background(), "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUserReturnsCopy(t *testing.T) {
	s := New()
	s.PutUser(&store.User{ID: "alice", FriendIDs: []string{"bob"}})

	u, err := s.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	u.FriendIDs[0] = "mallory"

	again, err := s.GetUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if again.FriendIDs[0] != "bob" {
		t.Fatal("mutation through returned record leaked into the store")
	}
}

func TestAddConversationToUserIdempotent(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.PutUser(&store.User{ID: "alice"})

	for i := 0; i < 3; i++ {
		if err := s.AddConversationToUser(ctx, "alice", "c1", false); err != nil {
			t.Fatalf("add conversation: %v", err)
		}
	}

	u, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if len(u.ConversationIDs) != 1 {
		t.Fatalf("expected 1 conversation entry, got %v", u.ConversationIDs)
	}

	if err := s.RemoveConversationFromUser(ctx, "alice", "c1", false); err != nil {
		t.Fatalf("remove conversation: %v", err)
	}
	u, _ = s.GetUser(ctx, "alice")
	if len(u.ConversationIDs) != 0 {
		t.Fatalf("expected empty conversation list, got %v", u.ConversationIDs)
	}
}

func TestSetReadFlagTransitions(t *testing.T) {
	ctx := context.Background()
	s := New()

	msg := &store.Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       "alice",
		Content:        "hi",
		SentAt:         time.Now(),
		ReadStatus:     map[string]bool{"bob": false},
	}
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("insert message: %v", err)
	}

	changed, err := s.SetReadFlag(ctx, "m1", "bob")
	if err != nil {
		t.Fatalf("set read flag: %v", err)
	}
	if !changed {
		t.Fatal("first read should report a change")
	}

	changed, err = s.SetReadFlag(ctx, "m1", "bob")
	if err != nil {
		t.Fatalf("set read flag: %v", err)
	}
	if changed {
		t.Fatal("second read should not report a change")
	}
}

func TestListMessagesChronological(t *testing.T) {
	ctx := context.Background()
	s := New()

	base := time.Now()
	for i, id := range []string{"m1", "m2", "m3"} {
		err := s.InsertMessage(ctx, &store.Message{
			ID:             id,
			ConversationID: "c1",
			SentAt:         base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	msgs, err := s.ListMessages(ctx, "c1", 2)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].ID != "m2" || msgs[1].ID != "m3" {
		t.Fatalf("expected the latest two in order, got %s, %s", msgs[0].ID, msgs[1].ID)
	}
}
