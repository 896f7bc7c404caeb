package core

import (
	"context"
	"errors"
	"testing"
)

func TestOnConnectJoinsRoomsOfMemberships(t *testing.T) {
	hub, _, conv := setupGroup(t)

	bobConn := connect(t, hub, "cb", "bob")

	subs := hub.Rooms().Subscribers(conv.ID)
	if len(subs) != 1 || subs[0].ID() != bobConn.ID() {
		t.Fatalf("expected bob's connection subscribed to the group room, got %v", subs)
	}
}

func TestOnConnectUnknownUser(t *testing.T) {
	hub, _, _ := setupGroup(t)

	err := hub.OnConnect(context.Background(), newFakeConn("cx", "nobody"))
	if CodeOf(err) != ErrCodeNotFound {
		t.Fatalf("expected not_found for unknown user, got %v", err)
	}
}

func TestOnDisconnectCleansEverything(t *testing.T) {
	hub, _, conv := setupGroup(t)

	bobConn := connect(t, hub, "cb", "bob")
	hub.OnDisconnect(bobConn)

	if hub.Presence().IsOnline("bob") {
		t.Fatal("bob should be offline after disconnect")
	}
	if subs := hub.Rooms().Subscribers(conv.ID); len(subs) != 0 {
		t.Fatalf("room subscription leaked after disconnect: %v", subs)
	}

	// Disconnecting again is harmless.
	hub.OnDisconnect(bobConn)
}

func TestDeadConnectionEvictedOnPublishFailure(t *testing.T) {
	hub, _, conv := setupGroup(t)
	ctx := context.Background()

	connect(t, hub, "ca", "alice")
	bobConn := connect(t, hub, "cb", "bob")
	bobConn.setFail(errors.New("connection reset"))

	if _, err := hub.SendMessage(ctx, conv.ID, "alice", "anyone here"); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}

	// The failed push runs the same cleanup as an explicit disconnect.
	waitFor(t, func() bool { return !hub.Presence().IsOnline("bob") })
	waitFor(t, func() bool {
		for _, c := range hub.Rooms().Subscribers(conv.ID) {
			if c.ID() == bobConn.ID() {
				return false
			}
		}
		return true
	})
}

func TestGetOnlineStatus(t *testing.T) {
	hub, _, _ := setupPrivate(t)

	connect(t, hub, "ca", "alice")

	got := hub.GetOnlineStatus([]string{"alice", "bob", "nobody"})
	want := map[string]bool{"alice": true, "bob": false, "nobody": false}
	for id, online := range want {
		if got[id] != online {
			t.Fatalf("GetOnlineStatus[%s] = %v, want %v", id, got[id], online)
		}
	}
}

func TestJoinConversationRequiresParticipant(t *testing.T) {
	hub, _, conv := setupPrivate(t)
	ctx := context.Background()

	carolConn := newFakeConn("cc", "carol")
	if err := hub.JoinConversation(ctx, carolConn, conv.ID); CodeOf(err) != ErrCodeForbidden {
		t.Fatalf("outsider join: expected forbidden, got %v", err)
	}

	aliceConn := connect(t, hub, "ca", "alice")
	if err := hub.JoinConversation(ctx, aliceConn, conv.ID); err != nil {
		t.Fatalf("participant join: %v", err)
	}

	hub.LeaveConversation(aliceConn, conv.ID)
	if subs := hub.Rooms().Subscribers(conv.ID); len(subs) != 0 {
		t.Fatalf("expected empty room after leave, got %v", subs)
	}
}
