package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chatcore-io/chatcore-server/internal/store"
	"github.com/chatcore-io/chatcore-server/internal/store/memstore"
)

const testSendTimeout = 100 * time.Millisecond

type recordedEvent struct {
	Event   string
	Payload any
}

// fakeConn records pushed events and can be told to fail sends.
type fakeConn struct {
	id     string
	userID string

	mu     sync.Mutex
	events []recordedEvent
	fail   error
}

func newFakeConn(id, userID string) *fakeConn {
	return &fakeConn{id: id, userID: userID}
}

func (c *fakeConn) ID() string     { return c.id }
func (c *fakeConn) UserID() string { return c.userID }

func (c *fakeConn) Send(_ context.Context, event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.events = append(c.events, recordedEvent{Event: event, Payload: payload})
	return nil
}

func (c *fakeConn) setFail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

func (c *fakeConn) recorded() []recordedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]recordedEvent(nil), c.events...)
}

func (c *fakeConn) countEvents(event string) int {
	n := 0
	for _, ev := range c.recorded() {
		if ev.Event == event {
			n++
		}
	}
	return n
}

func newTestHub(st store.Store) *Hub {
	logger := zerolog.Nop()
	return NewHub(st, 1000, testSendTimeout, &logger)
}

func seedUser(st *memstore.Store, id string, friendIDs ...string) {
	st.PutUser(&store.User{
		ID:        id,
		FullName:  "user " + id,
		FriendIDs: friendIDs,
	})
}

// waitFor polls until the condition holds, for work that happens on
// background goroutines.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not reached in time")
}

// requireMembershipInvariant checks that every conversation's participant
// list and the participants' own membership lists agree in both
// directions.
func requireMembershipInvariant(t *testing.T, st *memstore.Store) {
	t.Helper()

	ctx := context.Background()
	convs, err := st.Conversations(ctx)
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}

	byID := make(map[string]*store.Conversation, len(convs))
	for _, conv := range convs {
		byID[conv.ID] = conv
		group := conv.Type == store.ConversationGroup
		for _, userID := range conv.ParticipantIDs {
			u, err := st.GetUser(ctx, userID)
			if err != nil {
				t.Fatalf("participant %s of %s has no user record: %v", userID, conv.ID, err)
			}
			if !membershipContains(u, conv.ID, group) {
				t.Fatalf("user %s missing membership entry for conversation %s", userID, conv.ID)
			}
		}
	}

	// Reverse direction: every membership entry points at a conversation
	// that lists the user.
	users, err := allUsers(st)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	for _, u := range users {
		for _, convID := range append(append([]string(nil), u.ConversationIDs...), u.GroupIDs...) {
			conv, ok := byID[convID]
			if !ok {
				t.Fatalf("user %s references unknown conversation %s", u.ID, convID)
			}
			if !conv.HasParticipant(u.ID) {
				t.Fatalf("conversation %s does not list user %s back", convID, u.ID)
			}
		}
	}
}

func allUsers(st *memstore.Store) ([]*store.User, error) {
	return st.Users(context.Background())
}

// seededUserIDs is the id space the tests draw from.
var seededUserIDs = []string{"alice", "bob", "carol", "dave", "eve"}
